// Package trend classifies the market regime from a technical snapshot.
// The score is a deterministic weighted sum of independent components;
// the same snapshot always yields the same assessment.
package trend

import (
	"math"

	"zenith/internal/types"
)

// Component weights and gates.
const (
	weightPriceVsTrend = 30 // close above/below the very slow average
	weightAlignment    = 25 // full fast>mid>very-slow stack
	weightADX          = 20 // scaled by ADX/50, gated below
	weightSlope        = 15 // mid average 5-period slope
	slopeGatePct       = 0.5
	adxGate            = 25
	adxScaleCeiling    = 50
)

// Label boundaries on the summed score.
const (
	strongUpFloor = 60
	upFloor       = 20
	neutralFloor  = -20
	downFloor     = -60
)

// Signal names used in TrendAssessment.Signals.
const (
	SignalPriceVsTrend  = "price_vs_trend"
	SignalMAAlignment   = "ma_alignment"
	SignalADX           = "adx"
	SignalMASlope       = "ma_slope"
	SignalPricePosition = "price_position"
)

// Classify scores the snapshot and maps the score to a regime label.
func Classify(snap types.TechnicalSnapshot) types.TrendAssessment {
	signals := map[string]float64{
		SignalPriceVsTrend:  priceVsTrend(snap),
		SignalMAAlignment:   maAlignment(snap),
		SignalADX:           adxComponent(snap),
		SignalMASlope:       slopeComponent(snap),
		SignalPricePosition: pricePosition(snap),
	}

	var score float64
	for _, v := range signals {
		score += v
	}

	return types.TrendAssessment{
		Label:      labelFor(score),
		Score:      score,
		Strength:   math.Min(math.Abs(score), 100),
		Confidence: confidence(score, signals),
		Signals:    signals,
	}
}

func priceVsTrend(s types.TechnicalSnapshot) float64 {
	switch {
	case s.Close > s.MAVerySlow:
		return weightPriceVsTrend
	case s.Close < s.MAVerySlow:
		return -weightPriceVsTrend
	default:
		return 0
	}
}

func maAlignment(s types.TechnicalSnapshot) float64 {
	switch {
	case s.MAFast > s.MAMid && s.MAMid > s.MAVerySlow:
		return weightAlignment
	case s.MAFast < s.MAMid && s.MAMid < s.MAVerySlow:
		return -weightAlignment
	default:
		return 0
	}
}

// adxComponent contributes only when the trend is strong enough to read
// (ADX past the gate); direction comes from the dominant DI line.
func adxComponent(s types.TechnicalSnapshot) float64 {
	if s.ADX <= adxGate {
		return 0
	}
	magnitude := weightADX * math.Min(s.ADX/adxScaleCeiling, 1)
	if s.PlusDI > s.MinusDI {
		return magnitude
	}
	if s.MinusDI > s.PlusDI {
		return -magnitude
	}
	return 0
}

func slopeComponent(s types.TechnicalSnapshot) float64 {
	switch {
	case s.MidMASlopePct > slopeGatePct:
		return weightSlope
	case s.MidMASlopePct < -slopeGatePct:
		return -weightSlope
	default:
		return 0
	}
}

// pricePosition grades how many of the fast/mid/slow averages the close
// sits above: 0 of 3 is maximally bearish (-10), 3 of 3 maximally
// bullish (+10).
func pricePosition(s types.TechnicalSnapshot) float64 {
	count := s.PricePositionCount
	if count < 0 {
		count = 0
	}
	if count > 3 {
		count = 3
	}
	return (float64(count) - 1.5) * 6.67
}

func labelFor(score float64) types.TrendLabel {
	switch {
	case score >= strongUpFloor:
		return types.TrendStrongUp
	case score >= upFloor:
		return types.TrendUp
	case score >= neutralFloor:
		return types.TrendNeutral
	case score >= downFloor:
		return types.TrendDown
	default:
		return types.TrendStrongDown
	}
}

// confidence is the share of firing components whose sign agrees with the
// total score. With no firing components (or a zero score) there is
// nothing to agree on, so it reads 50.
func confidence(score float64, signals map[string]float64) float64 {
	if score == 0 {
		return 50
	}
	var fired, agreeing int
	for _, v := range signals {
		if v == 0 {
			continue
		}
		fired++
		if (v > 0) == (score > 0) {
			agreeing++
		}
	}
	if fired == 0 {
		return 50
	}
	return float64(agreeing) / float64(fired) * 100
}
