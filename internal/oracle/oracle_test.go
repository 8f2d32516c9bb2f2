package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenith/internal/pkg/circuit"
	"zenith/internal/types"
)

func TestParseOpinionPlainJSON(t *testing.T) {
	got, err := parseOpinion(`{"sentiment": 0.6, "confidence": 82, "recommendation": "BUY", "reasoning": "strong trend"}`)
	require.NoError(t, err)
	assert.Equal(t, types.RecommendBuy, got.Recommendation)
	assert.Equal(t, float64(82), got.Confidence)
	assert.Equal(t, 0.6, got.Sentiment)
	assert.Equal(t, "strong trend", got.Rationale)
}

func TestParseOpinionFencedJSON(t *testing.T) {
	content := "Here is my analysis:\n```json\n{\"sentiment\": -0.4, \"confidence\": 55, \"recommendation\": \"wait\", \"reasoning\": \"choppy\"}\n```"
	got, err := parseOpinion(content)
	require.NoError(t, err)
	assert.Equal(t, types.RecommendWait, got.Recommendation)
	assert.Equal(t, float64(55), got.Confidence)
}

func TestParseOpinionClampsRanges(t *testing.T) {
	got, err := parseOpinion(`{"sentiment": 4, "confidence": 300, "recommendation": "SELL"}`)
	require.NoError(t, err)
	assert.Equal(t, float64(100), got.Confidence)
	assert.Equal(t, float64(1), got.Sentiment)
}

func TestParseOpinionRejectsGarbage(t *testing.T) {
	for _, content := range []string{
		"I think you should buy.",
		`{"recommendation": "MAYBE", "confidence": 50}`,
		"",
	} {
		_, err := parseOpinion(content)
		assert.Error(t, err, "content %q", content)
	}
}

type flakyOracle struct {
	err     error
	opinion types.AdvisoryOpinion
	calls   int
}

func (f *flakyOracle) Advise(context.Context, string, types.TechnicalSnapshot, types.TrendAssessment) (types.AdvisoryOpinion, error) {
	f.calls++
	if f.err != nil {
		return types.AdvisoryOpinion{}, f.err
	}
	return f.opinion, nil
}

func TestGuardedDegradesToNeutralWait(t *testing.T) {
	inner := &flakyOracle{err: errors.New("model overloaded")}
	g := NewGuarded(inner, circuit.NewBreaker("oracle", 3, 1, time.Minute))

	got, err := g.Advise(context.Background(), "BTCUSDT", types.TechnicalSnapshot{}, types.TrendAssessment{})
	require.NoError(t, err)
	assert.Equal(t, types.RecommendWait, got.Recommendation)
	assert.Zero(t, got.Confidence)
}

func TestGuardedPassesThroughSuccess(t *testing.T) {
	inner := &flakyOracle{opinion: types.AdvisoryOpinion{
		Recommendation: types.RecommendBuy, Confidence: 90,
	}}
	g := NewGuarded(inner, circuit.NewBreaker("oracle", 3, 1, time.Minute))

	got, err := g.Advise(context.Background(), "BTCUSDT", types.TechnicalSnapshot{}, types.TrendAssessment{})
	require.NoError(t, err)
	assert.Equal(t, types.RecommendBuy, got.Recommendation)
	assert.Equal(t, 1, inner.calls)
}

func TestGuardedOpenBreakerShortCircuits(t *testing.T) {
	inner := &flakyOracle{err: errors.New("down")}
	breaker := circuit.NewBreaker("oracle", 1, 1, time.Hour)
	g := NewGuarded(inner, breaker)

	_, _ = g.Advise(context.Background(), "BTCUSDT", types.TechnicalSnapshot{}, types.TrendAssessment{})
	callsAfterTrip := inner.calls

	got, err := g.Advise(context.Background(), "BTCUSDT", types.TechnicalSnapshot{}, types.TrendAssessment{})
	require.NoError(t, err)
	assert.Equal(t, types.RecommendWait, got.Recommendation)
	assert.Equal(t, callsAfterTrip, inner.calls)
}
