package market

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenith/internal/pkg/errs"
	"zenith/internal/types"
)

// syntheticCandles builds a deterministic series long enough for every
// indicator. step moves the close each bar, so positive steps make an
// uptrend.
func syntheticCandles(n int, start, step float64) []types.Candle {
	out := make([]types.Candle, n)
	price := start
	for i := range out {
		next := price + step
		high := math.Max(price, next) * 1.01
		low := math.Min(price, next) * 0.99
		out[i] = types.Candle{
			OpenTime:  int64(i) * 3_600_000,
			CloseTime: int64(i+1)*3_600_000 - 1,
			Open:      price,
			High:      high,
			Low:       low,
			Close:     next,
			Volume:    1000,
		}
		price = next
	}
	return out
}

func TestBuildSnapshotRejectsShortHistory(t *testing.T) {
	_, err := BuildSnapshot("BTCUSDT", "1h", syntheticCandles(50, 100, 1))
	require.Error(t, err)
	var verr *errs.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestBuildSnapshotUptrend(t *testing.T) {
	candles := syntheticCandles(MinSnapshotCandles+40, 100, 0.5)
	snap, err := BuildSnapshot("BTCUSDT", "1h", candles)
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", snap.Symbol)
	assert.Equal(t, "1h", snap.Timeframe)
	assert.Equal(t, candles[len(candles)-1].Close, snap.Close)

	// A steady uptrend puts the close above every average, stacks the
	// averages fastest-first and tilts the mid-average slope up.
	assert.Greater(t, snap.Close, snap.MAFast)
	assert.Greater(t, snap.MAFast, snap.MAMid)
	assert.Greater(t, snap.MAMid, snap.MASlow)
	assert.Greater(t, snap.MASlow, snap.MAVerySlow)
	assert.Equal(t, 3, snap.PricePositionCount)
	assert.Positive(t, snap.MidMASlopePct)
	assert.Greater(t, snap.RSI, 50.0)
	assert.Positive(t, snap.ATR)
}

func TestBuildSnapshotDowntrend(t *testing.T) {
	candles := syntheticCandles(MinSnapshotCandles+40, 500, -0.5)
	snap, err := BuildSnapshot("ETHUSDT", "1h", candles)
	require.NoError(t, err)

	assert.Less(t, snap.Close, snap.MAVerySlow)
	assert.Equal(t, 0, snap.PricePositionCount)
	assert.Negative(t, snap.MidMASlopePct)
	assert.Less(t, snap.RSI, 50.0)
}
