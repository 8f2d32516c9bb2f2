// Package types defines the core domain model shared by the trend
// classifier, the judge, the trailing monitor and the executor.
package types

import "time"

// Candle is one OHLCV bar as returned by the market data source.
type Candle struct {
	OpenTime  int64
	CloseTime int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// TechnicalSnapshot is the per-instrument, per-timeframe indicator vector
// built fresh each cycle. It is immutable once built and never persisted.
type TechnicalSnapshot struct {
	Symbol    string
	Timeframe string
	At        time.Time

	Close float64

	// Momentum oscillator (RSI 14).
	RSI float64

	// Moving averages, fastest to slowest (EMA 20/50/100/200).
	MAFast     float64
	MAMid      float64
	MASlow     float64
	MAVerySlow float64

	// Trend strength (ADX 14) and the directional pressure pair (+DI/-DI).
	ADX     float64
	PlusDI  float64
	MinusDI float64

	// Momentum divergence line and its signal (MACD 12/26/9).
	MACD       float64
	MACDSignal float64

	// Volatility range (ATR 14).
	ATR float64

	// 5-period slope of the mid moving average, in percent.
	MidMASlopePct float64

	// How many of the fast/mid/slow moving averages the close exceeds (0..3).
	PricePositionCount int
}

// TrendLabel is the discrete market-regime classification.
type TrendLabel string

const (
	TrendStrongUp   TrendLabel = "STRONG_UP"
	TrendUp         TrendLabel = "UP"
	TrendNeutral    TrendLabel = "NEUTRAL"
	TrendDown       TrendLabel = "DOWN"
	TrendStrongDown TrendLabel = "STRONG_DOWN"
)

// Bearish reports whether the label marks an adverse regime for new longs.
func (t TrendLabel) Bearish() bool {
	return t == TrendDown || t == TrendStrongDown
}

// TrendAssessment is the classifier output. Recomputed every cycle,
// never stored.
type TrendAssessment struct {
	Label      TrendLabel
	Score      float64 // raw additive score in [-100, 100]
	Strength   float64 // |score|, capped at 100
	Confidence float64 // component sign agreement, 0..100

	// Per-component contributions, keyed by signal name. Exposed for the
	// status endpoint and for logging why a label was chosen.
	Signals map[string]float64
}

// PriceQuote is a fresh ticker read.
type PriceQuote struct {
	Symbol string
	Last   float64
	At     time.Time
}
