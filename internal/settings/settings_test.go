package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenith/internal/pkg/errs"
	"zenith/internal/types"
)

func TestParseDefaults(t *testing.T) {
	got, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, types.ModePaper, got.Mode)
	assert.False(t, got.Stopped)
	assert.Equal(t, 3, got.MaxOpenPositions)
	assert.True(t, got.RSIVetoEnabled)
	assert.Equal(t, float64(75), got.RSIOverbought)
	assert.Equal(t, float64(60), got.ConfidenceThreshold)
	assert.InDelta(t, 0.05, got.PositionSizePct, 1e-9)
	assert.InDelta(t, 0.10, got.MaxRiskPerTradePct, 1e-9)
	assert.Equal(t, DowntrendModerate, got.DowntrendMode)
	assert.True(t, got.Trailing.Enabled)
	assert.InDelta(t, 0.03, got.Trailing.StopPct, 1e-9)
	assert.InDelta(t, 0.01, got.Trailing.MinProfitPct, 1e-9)
	assert.Equal(t, "1h", got.Timeframe)
}

func TestParseSeedRowsRoundTrip(t *testing.T) {
	got, err := Parse(Defaults())
	require.NoError(t, err)
	fromNil, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, fromNil, got)
}

func TestParseOverrides(t *testing.T) {
	got, err := Parse(map[string]string{
		KeyTradingMode:         "LIVE",
		KeyMaxOpenPositions:    "5",
		KeyPositionSizePct:     "10",
		KeyDowntrendProtection: "true",
		KeyDowntrendMode:       "strict",
		KeyTrailingUseATR:      "true",
	})
	require.NoError(t, err)
	assert.Equal(t, types.ModeLive, got.Mode)
	assert.Equal(t, 5, got.MaxOpenPositions)
	assert.InDelta(t, 0.10, got.PositionSizePct, 1e-9)
	assert.True(t, got.DowntrendProtection)
	assert.Equal(t, DowntrendStrict, got.DowntrendMode)
	assert.True(t, got.Trailing.UseATR)
}

func TestParseAcceptsKlineTimeframes(t *testing.T) {
	for _, tf := range []string{"15m", "4h", "1d", "1w"} {
		got, err := Parse(map[string]string{KeyTimeframe: tf})
		require.NoError(t, err, "timeframe %q", tf)
		assert.Equal(t, tf, got.Timeframe)
	}
}

func TestParseStripsQuotedValues(t *testing.T) {
	got, err := Parse(map[string]string{KeyTradingMode: `"PAPER"`})
	require.NoError(t, err)
	assert.Equal(t, types.ModePaper, got.Mode)
}

func TestParseStoppedFlag(t *testing.T) {
	got, err := Parse(map[string]string{KeyBotStatus: "stopped"})
	require.NoError(t, err)
	assert.True(t, got.Stopped)

	got, err = Parse(map[string]string{KeyBotStatus: "RUNNING"})
	require.NoError(t, err)
	assert.False(t, got.Stopped)
}

func TestParseMalformedValues(t *testing.T) {
	cases := []map[string]string{
		{KeyTradingMode: "YOLO"},
		{KeyDowntrendMode: "SOMETIMES"},
		{KeyMaxOpenPositions: "many"},
		{KeyMaxOpenPositions: "0"},
		{KeyRSIOverbought: "very high"},
		{KeyPositionSizePct: "150"},
		{KeyTrailingStopPct: "0"},
		{KeyTimeframe: "soon"},
		{KeyTimeframe: "0h"},
	}
	for i, rows := range cases {
		_, err := Parse(rows)
		require.Error(t, err, "case %d", i)
		var cfgErr *errs.ConfigurationError
		assert.ErrorAs(t, err, &cfgErr, "case %d", i)
	}
}
