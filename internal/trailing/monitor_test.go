package trailing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenith/internal/settings"
	"zenith/internal/types"
)

func fixedTrailing() settings.Trailing {
	return settings.Trailing{
		Enabled:       true,
		UseATR:        false,
		StopPct:       0.03,
		ATRMultiplier: 2,
		MinProfitPct:  0.01,
	}
}

func TestEvaluateFixedModeTrigger(t *testing.T) {
	pos := types.Position{EntryPrice: 100, PeakPrice: 106}

	peak, stop, triggered := Evaluate(pos, 102, fixedTrailing())
	assert.Equal(t, float64(106), peak)
	assert.InDelta(t, 102.82, stop, 0.001)
	assert.True(t, triggered)

	// Just above the stop: armed but not triggered.
	_, _, triggered = Evaluate(pos, 102.83, fixedTrailing())
	assert.False(t, triggered)
}

func TestEvaluatePeakMonotonic(t *testing.T) {
	pos := types.Position{EntryPrice: 100, PeakPrice: 100}
	cfg := fixedTrailing()

	prices := []float64{101, 105, 103, 106, 99, 104}
	prevPeak := pos.PeakPrice
	for _, p := range prices {
		peak, _, _ := Evaluate(pos, p, cfg)
		assert.GreaterOrEqual(t, peak, prevPeak)
		pos.PeakPrice = peak
		prevPeak = peak
	}
	assert.Equal(t, float64(106), pos.PeakPrice)
}

func TestEvaluateNoExitBeforeActivation(t *testing.T) {
	cfg := fixedTrailing()
	// Peak never clears the 1% activation profit; even a hard drop must
	// not trigger through this mechanism.
	pos := types.Position{EntryPrice: 100, PeakPrice: 100.5}

	peak, stop, triggered := Evaluate(pos, 80, cfg)
	assert.Equal(t, float64(100.5), peak)
	assert.Zero(t, stop)
	assert.False(t, triggered)
}

func TestEvaluateATRMode(t *testing.T) {
	cfg := fixedTrailing()
	cfg.UseATR = true
	pos := types.Position{EntryPrice: 100, PeakPrice: 110, EntryATR: 2.5}

	_, stop, triggered := Evaluate(pos, 104, cfg)
	assert.Equal(t, float64(105), stop) // 110 - 2.5*2
	assert.True(t, triggered)
}

func TestEvaluateATRFallbackToFixed(t *testing.T) {
	cfg := fixedTrailing()
	cfg.UseATR = true
	pos := types.Position{EntryPrice: 100, PeakPrice: 110, EntryATR: 0}

	_, stop, _ := Evaluate(pos, 108, cfg)
	assert.InDelta(t, 110*0.97, stop, 0.001)
}

func TestEvaluateSeedsPeakFromEntry(t *testing.T) {
	pos := types.Position{EntryPrice: 100}
	peak, _, _ := Evaluate(pos, 99, fixedTrailing())
	assert.Equal(t, float64(100), peak)
}

type fakePrices struct {
	prices map[string]float64
	errs   map[string]error
}

func (f *fakePrices) FetchPrice(_ context.Context, symbol string) (types.PriceQuote, error) {
	if err := f.errs[symbol]; err != nil {
		return types.PriceQuote{}, err
	}
	return types.PriceQuote{Symbol: symbol, Last: f.prices[symbol]}, nil
}

type fakeStore struct {
	open    []types.Position
	updates map[int64][2]float64
}

func (f *fakeStore) ListOpenPositions(context.Context, bool) ([]types.Position, error) {
	return f.open, nil
}

func (f *fakeStore) UpdatePositionStops(_ context.Context, id int64, peak, stop float64) error {
	if f.updates == nil {
		f.updates = make(map[int64][2]float64)
	}
	f.updates[id] = [2]float64{peak, stop}
	return nil
}

func TestSweepTriggersOncePerPosition(t *testing.T) {
	st := &fakeStore{open: []types.Position{
		{ID: 1, Symbol: "BTCUSDT", EntryPrice: 100, PeakPrice: 106},
		{ID: 2, Symbol: "ETHUSDT", EntryPrice: 200, PeakPrice: 201},
	}}
	prices := &fakePrices{prices: map[string]float64{
		"BTCUSDT": 102, // below stop 102.82
		"ETHUSDT": 205, // new peak, no trigger
	}}
	m := NewMonitor(prices, st)

	res, err := m.Sweep(context.Background(), true, fixedTrailing())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Checked)
	require.Len(t, res.Triggers, 1)
	assert.Equal(t, "BTCUSDT", res.Triggers[0].Position.Symbol)
	assert.ElementsMatch(t, []string{"BTCUSDT", "ETHUSDT"}, res.HeldSyms)

	// The raised ETH peak was persisted.
	assert.Equal(t, [2]float64{205, 205 * 0.97}, st.updates[2])
}

func TestSweepSkipsFailedPriceFetch(t *testing.T) {
	st := &fakeStore{open: []types.Position{
		{ID: 1, Symbol: "BTCUSDT", EntryPrice: 100, PeakPrice: 106},
		{ID: 2, Symbol: "ETHUSDT", EntryPrice: 100, PeakPrice: 106},
	}}
	prices := &fakePrices{
		prices: map[string]float64{"ETHUSDT": 102},
		errs:   map[string]error{"BTCUSDT": errors.New("timeout")},
	}
	m := NewMonitor(prices, st)

	res, err := m.Sweep(context.Background(), true, fixedTrailing())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Errored)
	require.Len(t, res.Triggers, 1)
	assert.Equal(t, "ETHUSDT", res.Triggers[0].Position.Symbol)
}

func TestSweepDisabledStillReportsHeldSymbols(t *testing.T) {
	st := &fakeStore{open: []types.Position{{ID: 1, Symbol: "BTCUSDT", EntryPrice: 100, PeakPrice: 90}}}
	m := NewMonitor(&fakePrices{}, st)

	cfg := fixedTrailing()
	cfg.Enabled = false
	res, err := m.Sweep(context.Background(), true, cfg)
	require.NoError(t, err)
	assert.Zero(t, res.Checked)
	assert.Empty(t, res.Triggers)
	assert.Equal(t, []string{"BTCUSDT"}, res.HeldSyms)
}
