package engine

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenith/internal/executor"
	"zenith/internal/market"
	"zenith/internal/settings"
	"zenith/internal/store"
	"zenith/internal/trailing"
	"zenith/internal/types"
)

type stubSource struct {
	price float64
	step  float64
	quote float64 // ticker price; falls back to price when zero
}

func (s *stubSource) FetchCandles(_ context.Context, _, _ string, limit int) ([]types.Candle, error) {
	out := make([]types.Candle, limit)
	price := s.price - float64(limit)*s.step
	for i := range out {
		next := price + s.step
		out[i] = types.Candle{
			OpenTime:  int64(i) * 3_600_000,
			CloseTime: int64(i+1)*3_600_000 - 1,
			Open:      price,
			High:      math.Max(price, next) * 1.01,
			Low:       math.Min(price, next) * 0.99,
			Close:     next,
			Volume:    1000,
		}
		price = next
	}
	return out, nil
}

func (s *stubSource) FetchPrice(_ context.Context, symbol string) (types.PriceQuote, error) {
	last := s.quote
	if last == 0 {
		last = s.price
	}
	return types.PriceQuote{Symbol: symbol, Last: last}, nil
}

func (s *stubSource) FetchBalance(context.Context, string) (float64, error) { return 0, nil }

func (s *stubSource) PlaceMarketOrder(context.Context, market.OrderRequest) (types.OrderResult, error) {
	return types.OrderResult{}, nil
}

type stubOracle struct {
	opinion types.AdvisoryOpinion
}

func (s *stubOracle) Advise(context.Context, string, types.TechnicalSnapshot, types.TrendAssessment) (types.AdvisoryOpinion, error) {
	return s.opinion, nil
}

func newTestEngine(t *testing.T, symbols []string, src market.Source, orc *stubOracle) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	require.NoError(t, st.SeedConfig(ctx, settings.Defaults()))
	require.NoError(t, st.EnsureBalance(ctx, 10000))

	monitor := trailing.NewMonitor(src, st)
	exec := executor.New(st, src)
	return New(st, src, orc, monitor, exec, symbols, "USDT"), st
}

func TestRunCycleExecutesApprovedBuy(t *testing.T) {
	src := &stubSource{price: 500, step: 0.5} // steady uptrend
	orc := &stubOracle{opinion: types.AdvisoryOpinion{
		Recommendation: types.RecommendBuy, Confidence: 90,
	}}
	eng, st := newTestEngine(t, []string{"BTCUSDT"}, src, orc)
	ctx := context.Background()

	// A synthetic uptrend saturates RSI, which is not what this test is
	// about.
	require.NoError(t, st.SetConfig(ctx, settings.KeyRSIVetoEnabled, "false"))

	summary, err := eng.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Evaluated)
	assert.Equal(t, 1, summary.Approved)
	assert.Equal(t, 1, summary.Executed)
	assert.Zero(t, summary.Errored)

	pos, err := st.FindOpenPosition(ctx, "BTCUSDT", true)
	require.NoError(t, err)
	require.NotNil(t, pos)

	balance, err := st.Balance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 9500, balance, 0.001) // min(5%, 10%) of 10000 spent
}

func TestRunCycleRejectsDuplicateBuy(t *testing.T) {
	src := &stubSource{price: 500, step: 0.5}
	orc := &stubOracle{opinion: types.AdvisoryOpinion{
		Recommendation: types.RecommendBuy, Confidence: 90,
	}}
	eng, st := newTestEngine(t, []string{"BTCUSDT"}, src, orc)
	ctx := context.Background()

	require.NoError(t, st.SetConfig(ctx, settings.KeyRSIVetoEnabled, "false"))

	_, err := eng.RunCycle(ctx)
	require.NoError(t, err)

	summary, err := eng.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rejected)
	assert.Zero(t, summary.Executed)
}

func TestRunCycleHonorsStopFlag(t *testing.T) {
	src := &stubSource{price: 500, step: 0.5}
	orc := &stubOracle{opinion: types.AdvisoryOpinion{
		Recommendation: types.RecommendBuy, Confidence: 90,
	}}
	eng, st := newTestEngine(t, []string{"BTCUSDT"}, src, orc)
	ctx := context.Background()

	require.NoError(t, st.SetConfig(ctx, settings.KeyBotStatus, settings.BotStatusStopped))

	summary, err := eng.RunCycle(ctx)
	require.NoError(t, err)
	assert.True(t, summary.Stopped)
	assert.Zero(t, summary.Evaluated)
}

func TestRunCycleNeutralOracleNeverTrades(t *testing.T) {
	src := &stubSource{price: 500, step: 0.5}
	orc := &stubOracle{opinion: types.NeutralOpinion("degraded")}
	eng, st := newTestEngine(t, []string{"BTCUSDT"}, src, orc)
	ctx := context.Background()

	summary, err := eng.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rejected)

	count, err := st.CountOpenPositions(ctx, true)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRunCycleTrailingExitAndReinjection(t *testing.T) {
	// Held symbol is no longer in the scan list; the sweep must still
	// close it when the stop is hit.
	src := &stubSource{price: 500, step: 0.5, quote: 102}
	orc := &stubOracle{opinion: types.NeutralOpinion("quiet")}
	eng, st := newTestEngine(t, []string{"ETHUSDT"}, src, orc)
	ctx := context.Background()

	pos := types.Position{
		Symbol: "BTCUSDT", Side: types.SideLong,
		EntryPrice: 100, Quantity: 5, Simulated: true, PeakPrice: 106,
	}
	require.NoError(t, st.OpenPaperPosition(ctx, &pos, 9500))

	summary, err := eng.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TrailingTriggered)
	// Scan list plus the re-injected held symbol.
	assert.Equal(t, 2, summary.Evaluated)

	closed, err := st.FindOpenPosition(ctx, "BTCUSDT", true)
	require.NoError(t, err)
	assert.Nil(t, closed)

	balance, err := st.Balance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 9500+5*102, balance, 0.001)
}

func TestRunCycleBeatsOnMalformedConfig(t *testing.T) {
	src := &stubSource{price: 500, step: 0.5}
	eng, st := newTestEngine(t, []string{"BTCUSDT"}, src, &stubOracle{opinion: types.NeutralOpinion("x")})
	ctx := context.Background()

	require.NoError(t, st.SetConfig(ctx, settings.KeyMaxOpenPositions, "many"))

	before := eng.Heartbeat()
	_, err := eng.RunCycle(ctx)
	require.Error(t, err)

	// A bad config row needs an operator; the watchdog must stay quiet.
	assert.False(t, eng.Heartbeat().Before(before))
	_, ok, readErr := st.GetConfig(ctx, settings.KeyHeartbeat)
	require.NoError(t, readErr)
	assert.True(t, ok)
}

func TestHeartbeatAdvances(t *testing.T) {
	src := &stubSource{price: 500, step: 0.5}
	eng, _ := newTestEngine(t, []string{"BTCUSDT"}, src, &stubOracle{opinion: types.NeutralOpinion("x")})

	before := eng.Heartbeat()
	_, err := eng.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, eng.Heartbeat().Before(before))
}
