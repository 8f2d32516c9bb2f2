package types

// Recommendation is the advisory oracle's suggested action.
type Recommendation string

const (
	RecommendBuy  Recommendation = "BUY"
	RecommendSell Recommendation = "SELL"
	RecommendWait Recommendation = "WAIT"
)

// AdvisoryOpinion is the oracle's view of one instrument. It is never
// trusted blindly; the judge re-validates every field.
type AdvisoryOpinion struct {
	Sentiment      float64 // -1..1
	Confidence     float64 // 0..100
	Recommendation Recommendation
	Rationale      string
}

// NeutralOpinion is the degraded stand-in used whenever the oracle fails:
// a WAIT with zero confidence, which no guardrail chain can approve.
func NeutralOpinion(reason string) AdvisoryOpinion {
	return AdvisoryOpinion{
		Sentiment:      0,
		Confidence:     0,
		Recommendation: RecommendWait,
		Rationale:      reason,
	}
}

// Outcome is the judge's verdict.
type Outcome string

const (
	Approved Outcome = "APPROVED"
	Rejected Outcome = "REJECTED"
)

// Decision is the output of one judge evaluation. Rejections are normal
// outcomes, not errors; Size is always 0 for rejections and for SELLs
// (the executor sizes SELLs from the open position).
type Decision struct {
	Outcome Outcome
	Size    float64 // quote-currency notional for BUYs
	Reason  string
}

// Reject builds a zero-size rejection with the given reason.
func Reject(reason string) Decision {
	return Decision{Outcome: Rejected, Size: 0, Reason: reason}
}

// Mode selects paper (simulated) or live execution.
type Mode string

const (
	ModePaper Mode = "PAPER"
	ModeLive  Mode = "LIVE"
)

// Simulated reports whether the mode trades virtual capital.
func (m Mode) Simulated() bool { return m != ModeLive }

// PortfolioState is the balance and exposure the judge sizes against.
type PortfolioState struct {
	Mode          Mode
	Balance       float64
	OpenPositions int
}
