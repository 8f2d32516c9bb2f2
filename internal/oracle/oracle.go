// Package oracle asks an OpenAI-compatible model for a trading opinion.
// The model is treated as an unreliable advisor: any transport or parse
// failure degrades to a neutral WAIT opinion upstream, and every returned
// field is re-validated before use.
package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"zenith/internal/pkg/jsonutil"
	"zenith/internal/types"
)

// Oracle produces an advisory opinion for one instrument.
type Oracle interface {
	Advise(ctx context.Context, symbol string, snap types.TechnicalSnapshot, trend types.TrendAssessment) (types.AdvisoryOpinion, error)
}

const systemPrompt = `You are the strategist of a spot trading bot. You receive a technical
snapshot and a trend assessment for one instrument. Decide whether to BUY,
SELL or WAIT and how confident you are.

Respond with a single JSON object, no other text:
{
  "sentiment": <float, -1.0 bearish .. 1.0 bullish>,
  "confidence": <int, 0..100>,
  "recommendation": "BUY" | "SELL" | "WAIT",
  "reasoning": "<one or two sentences>"
}`

func userPrompt(symbol string, snap types.TechnicalSnapshot, trend types.TrendAssessment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Instrument: %s (%s)\n", symbol, snap.Timeframe)
	fmt.Fprintf(&b, "Close: %.4f\n", snap.Close)
	fmt.Fprintf(&b, "RSI(14): %.1f\n", snap.RSI)
	fmt.Fprintf(&b, "EMA 20/50/100/200: %.4f / %.4f / %.4f / %.4f\n", snap.MAFast, snap.MAMid, snap.MASlow, snap.MAVerySlow)
	fmt.Fprintf(&b, "ADX: %.1f (+DI %.1f, -DI %.1f)\n", snap.ADX, snap.PlusDI, snap.MinusDI)
	fmt.Fprintf(&b, "MACD: %.4f, signal %.4f\n", snap.MACD, snap.MACDSignal)
	fmt.Fprintf(&b, "ATR(14): %.4f\n", snap.ATR)
	fmt.Fprintf(&b, "Trend: %s (score %.1f, strength %.1f, confidence %.0f)\n",
		trend.Label, trend.Score, trend.Strength, trend.Confidence)
	return b.String()
}

// parseOpinion extracts and validates the model's JSON answer.
func parseOpinion(content string) (types.AdvisoryOpinion, error) {
	raw, ok := jsonutil.ExtractObject(content)
	if !ok || !gjson.Valid(raw) {
		return types.AdvisoryOpinion{}, fmt.Errorf("oracle returned no parsable JSON")
	}
	doc := gjson.Parse(raw)

	rec := types.Recommendation(strings.ToUpper(strings.TrimSpace(doc.Get("recommendation").String())))
	switch rec {
	case types.RecommendBuy, types.RecommendSell, types.RecommendWait:
	default:
		return types.AdvisoryOpinion{}, fmt.Errorf("oracle returned unknown recommendation %q", rec)
	}

	conf := doc.Get("confidence").Float()
	if conf < 0 {
		conf = 0
	}
	if conf > 100 {
		conf = 100
	}
	sentiment := doc.Get("sentiment").Float()
	if sentiment < -1 {
		sentiment = -1
	}
	if sentiment > 1 {
		sentiment = 1
	}

	return types.AdvisoryOpinion{
		Sentiment:      sentiment,
		Confidence:     conf,
		Recommendation: rec,
		Rationale:      strings.TrimSpace(doc.Get("reasoning").String()),
	}, nil
}
