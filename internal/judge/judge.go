// Package judge is the rule gate between the advisory oracle and the
// executor. It runs a fixed chain of guardrails; the first failing rule
// decides the rejection reason, and a rejection is a normal outcome,
// never an error.
package judge

import (
	"fmt"

	"zenith/internal/settings"
	"zenith/internal/types"
)

// Input is everything one evaluation looks at. Settings must be loaded
// fresh by the caller for every call; the judge itself holds no state.
type Input struct {
	Symbol    string
	Opinion   types.AdvisoryOpinion
	Snapshot  types.TechnicalSnapshot
	Trend     types.TrendAssessment
	Portfolio types.PortfolioState

	// HasOpenPosition reports whether this instrument already has an open
	// position in the current mode.
	HasOpenPosition bool

	Settings settings.Settings
}

// Evaluate runs the guardrail chain in order and returns the decision.
// Order matters: the earliest failing rule wins and short-circuits.
func Evaluate(in Input) types.Decision {
	rec := in.Opinion.Recommendation
	cfg := in.Settings

	// 1. Position-count cap.
	if rec == types.RecommendBuy && in.Portfolio.OpenPositions >= cfg.MaxOpenPositions {
		return types.Reject(fmt.Sprintf("Position Limit: %d/%d open", in.Portfolio.OpenPositions, cfg.MaxOpenPositions))
	}

	// 2. One position per instrument.
	if rec == types.RecommendBuy && in.HasOpenPosition {
		return types.Reject(fmt.Sprintf("Duplicate Veto: %s already open", in.Symbol))
	}

	// 3. Nothing to sell.
	if rec == types.RecommendSell && !in.HasOpenPosition {
		return types.Reject(fmt.Sprintf("No Position: nothing open for %s", in.Symbol))
	}

	// 4. Hard technical vetoes.
	if rec == types.RecommendBuy {
		if d, rejected := technicalVetoes(in); rejected {
			return d
		}
	}

	// 5. Downtrend protection.
	if rec == types.RecommendBuy && cfg.DowntrendProtection {
		if d, rejected := downtrendVeto(in); rejected {
			return d
		}
	}

	// 6. Oracle agreement.
	if rec != types.RecommendBuy && rec != types.RecommendSell {
		return types.Reject(fmt.Sprintf("AI Recommendation is %s", rec))
	}
	threshold := confidenceThreshold(in)
	if in.Opinion.Confidence < threshold {
		return types.Reject(fmt.Sprintf("AI Uncertainty: %.0f%% < %.0f%%", in.Opinion.Confidence, threshold))
	}

	// 7. Sizing. SELLs carry no size; the executor sells the full held
	// quantity.
	if rec == types.RecommendSell {
		return types.Decision{
			Outcome: types.Approved,
			Size:    0,
			Reason:  fmt.Sprintf("AI Agreed (Conf: %.0f%%), exiting %s", in.Opinion.Confidence, in.Symbol),
		}
	}
	size := positionSize(in)
	if size <= 0 {
		return types.Reject(fmt.Sprintf("Sizing: no capital available (balance %.2f)", in.Portfolio.Balance))
	}
	return types.Decision{
		Outcome: types.Approved,
		Size:    size,
		Reason:  fmt.Sprintf("AI Agreed (Conf: %.0f%%) + Tech Clean. Sizing: %.2f", in.Opinion.Confidence, size),
	}
}

func technicalVetoes(in Input) (types.Decision, bool) {
	cfg := in.Settings
	snap := in.Snapshot

	if cfg.RSIVetoEnabled && snap.RSI > cfg.RSIOverbought {
		return types.Reject(fmt.Sprintf("Technical Veto: RSI %.1f > %.0f", snap.RSI, cfg.RSIOverbought)), true
	}
	if cfg.TrendFilterEnabled && snap.Close < snap.MASlow {
		return types.Reject(fmt.Sprintf("Trend Veto: Price %.2f < slow MA %.2f", snap.Close, snap.MASlow)), true
	}
	if cfg.MACDFilterEnabled && snap.MACD < snap.MACDSignal {
		return types.Reject(fmt.Sprintf("Momentum Veto: MACD %.4f < Signal %.4f", snap.MACD, snap.MACDSignal)), true
	}
	return types.Decision{}, false
}

func downtrendVeto(in Input) (types.Decision, bool) {
	cfg := in.Settings
	label := in.Trend.Label
	if !label.Bearish() {
		return types.Decision{}, false
	}

	switch cfg.DowntrendMode {
	case settings.DowntrendStrict:
		return types.Reject(fmt.Sprintf("Downtrend Veto: %s blocks new longs (STRICT)", label)), true

	case settings.DowntrendModerate:
		if label == types.TrendStrongDown {
			return types.Reject("Downtrend Veto: STRONG_DOWN blocks new longs (MODERATE)"), true
		}
		// DOWN: allowed, but only with boosted confidence; the raised
		// threshold is enforced in the oracle-agreement step.
		return types.Decision{}, false

	case settings.DowntrendSelective:
		// Let relative strength through: the instrument must hold above
		// its long-term average with the close over most of its averages.
		if in.Snapshot.Close > in.Snapshot.MAVerySlow && in.Snapshot.PricePositionCount >= 2 {
			return types.Decision{}, false
		}
		return types.Reject(fmt.Sprintf("Downtrend Veto: %s without relative strength (SELECTIVE)", label)), true
	}
	return types.Decision{}, false
}

// confidenceThreshold is the base threshold, raised by the configured
// boost when MODERATE protection is letting a DOWN-trend BUY through.
func confidenceThreshold(in Input) float64 {
	cfg := in.Settings
	t := cfg.ConfidenceThreshold
	if in.Opinion.Recommendation == types.RecommendBuy &&
		cfg.DowntrendProtection &&
		cfg.DowntrendMode == settings.DowntrendModerate &&
		in.Trend.Label == types.TrendDown {
		t += cfg.DowntrendAIBoost
	}
	return t
}

// positionSize computes the quote notional for an approved BUY. The
// MODERATE reduction and the STRONG_DOWN halving never stack: the labels
// are mutually exclusive.
func positionSize(in Input) float64 {
	cfg := in.Settings

	balance := in.Portfolio.Balance
	if cfg.TradingCapital > 0 && cfg.TradingCapital < balance {
		balance = cfg.TradingCapital
	}

	base := balance * cfg.PositionSizePct
	riskCap := balance * cfg.MaxRiskPerTradePct
	size := base
	if riskCap < size {
		size = riskCap
	}

	if cfg.DowntrendProtection && cfg.DowntrendMode == settings.DowntrendModerate && in.Trend.Label == types.TrendDown {
		size *= 1 - cfg.DowntrendSizeReductionPct
	}
	if in.Trend.Label == types.TrendStrongDown {
		size *= 0.5
	}
	return size
}
