package market

import (
	"fmt"
	"math"
	"time"

	"github.com/markcheno/go-talib"

	"zenith/internal/pkg/errs"
	"zenith/internal/types"
)

// Indicator periods. The slowest average dominates the history
// requirement.
const (
	emaFastPeriod     = 20
	emaMidPeriod      = 50
	emaSlowPeriod     = 100
	emaVerySlowPeriod = 200
	rsiPeriod         = 14
	adxPeriod         = 14
	atrPeriod         = 14
	macdFast          = 12
	macdSlow          = 26
	macdSignal        = 9
	slopeLookback     = 5
)

// MinSnapshotCandles is the fewest bars BuildSnapshot accepts. The extra
// margin past the slowest EMA lets the averages settle and leaves room
// for the slope lookback.
const MinSnapshotCandles = emaVerySlowPeriod + 2*slopeLookback

// BuildSnapshot computes the full indicator vector from closed candles,
// oldest first. The snapshot reflects the last bar in the series.
func BuildSnapshot(symbol, timeframe string, candles []types.Candle) (types.TechnicalSnapshot, error) {
	if len(candles) < MinSnapshotCandles {
		return types.TechnicalSnapshot{}, &errs.ValidationError{
			Field:  "candles",
			Reason: fmt.Sprintf("need at least %d bars for %s, got %d", MinSnapshotCandles, symbol, len(candles)),
		}
	}

	n := len(candles)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	emaFast := talib.Ema(closes, emaFastPeriod)
	emaMid := talib.Ema(closes, emaMidPeriod)
	emaSlow := talib.Ema(closes, emaSlowPeriod)
	emaVerySlow := talib.Ema(closes, emaVerySlowPeriod)
	rsi := talib.Rsi(closes, rsiPeriod)
	adx := talib.Adx(highs, lows, closes, adxPeriod)
	plusDI := talib.PlusDI(highs, lows, closes, adxPeriod)
	minusDI := talib.MinusDI(highs, lows, closes, adxPeriod)
	macdLine, signalLine, _ := talib.Macd(closes, macdFast, macdSlow, macdSignal)
	atr := talib.Atr(highs, lows, closes, atrPeriod)

	last := n - 1
	snap := types.TechnicalSnapshot{
		Symbol:     symbol,
		Timeframe:  timeframe,
		At:         time.Unix(0, candles[last].CloseTime*int64(time.Millisecond)).UTC(),
		Close:      closes[last],
		RSI:        rsi[last],
		MAFast:     emaFast[last],
		MAMid:      emaMid[last],
		MASlow:     emaSlow[last],
		MAVerySlow: emaVerySlow[last],
		ADX:        adx[last],
		PlusDI:     plusDI[last],
		MinusDI:    minusDI[last],
		MACD:       macdLine[last],
		MACDSignal: signalLine[last],
		ATR:        atr[last],
	}

	if prev := emaMid[last-slopeLookback]; prev > 0 {
		snap.MidMASlopePct = (emaMid[last] - prev) / prev * 100
	}

	for _, ma := range []float64{snap.MAFast, snap.MAMid, snap.MASlow} {
		if snap.Close > ma {
			snap.PricePositionCount++
		}
	}

	if !finite(snap.Close, snap.RSI, snap.MAFast, snap.MAMid, snap.MASlow, snap.MAVerySlow,
		snap.ADX, snap.MACD, snap.MACDSignal, snap.ATR) {
		return types.TechnicalSnapshot{}, &errs.ValidationError{
			Field:  "candles",
			Reason: fmt.Sprintf("non-finite indicator values for %s", symbol),
		}
	}
	return snap, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
