// Package engine drives one trading cycle: trailing-stop sweep, then a
// sequential evaluation of every candidate instrument through the
// classifier, the oracle and the judge, executing whatever is approved.
package engine

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"zenith/internal/judge"
	"zenith/internal/logger"
	"zenith/internal/market"
	"zenith/internal/oracle"
	"zenith/internal/settings"
	"zenith/internal/store"
	"zenith/internal/trailing"
	"zenith/internal/trend"
	"zenith/internal/types"
)

// candleLimit leaves margin over the slowest indicator period.
const candleLimit = market.MinSnapshotCandles + 40

// Executor fills approved signals.
type Executor interface {
	Execute(ctx context.Context, sig types.Signal) error
}

// CycleSummary is the structured result of one cycle, for logging and
// the status endpoint.
type CycleSummary struct {
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	Stopped   bool      `json:"stopped"`

	Evaluated int `json:"evaluated"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	Executed  int `json:"executed"`
	Errored   int `json:"errored"`

	TrailingChecked   int `json:"trailing_checked"`
	TrailingTriggered int `json:"trailing_triggered"`
}

// Engine owns the per-cycle orchestration. The heartbeat timestamp is
// the only state it shares with other goroutines.
type Engine struct {
	store    *store.Store
	source   market.Source
	oracle   oracle.Oracle
	monitor  *trailing.Monitor
	executor Executor

	symbols    []string // configured scan list
	quoteAsset string

	hbMu      sync.Mutex
	lastCycle time.Time

	sumMu   sync.Mutex
	lastSum CycleSummary
}

func New(st *store.Store, source market.Source, orc oracle.Oracle, monitor *trailing.Monitor, exec Executor, symbols []string, quoteAsset string) *Engine {
	if quoteAsset == "" {
		quoteAsset = "USDT"
	}
	return &Engine{
		store:      st,
		source:     source,
		oracle:     orc,
		monitor:    monitor,
		executor:   exec,
		symbols:    symbols,
		quoteAsset: quoteAsset,
		lastCycle:  time.Now(),
	}
}

// Heartbeat returns when the last cycle completed. The watchdog kills
// the process when this goes stale.
func (e *Engine) Heartbeat() time.Time {
	e.hbMu.Lock()
	defer e.hbMu.Unlock()
	return e.lastCycle
}

// LastSummary returns the most recent cycle summary.
func (e *Engine) LastSummary() CycleSummary {
	e.sumMu.Lock()
	defer e.sumMu.Unlock()
	return e.lastSum
}

func (e *Engine) beat(ctx context.Context) {
	now := time.Now()
	e.hbMu.Lock()
	e.lastCycle = now
	e.hbMu.Unlock()
	if err := e.store.SetConfig(ctx, settings.KeyHeartbeat, strconv.FormatInt(now.Unix(), 10)); err != nil {
		logger.Warnf("engine: persisting heartbeat: %v", err)
	}
}

// RunCycle executes one full cycle: settings load, trailing sweep, then
// per-instrument evaluation. Instrument-level failures are logged and
// skipped; only an unreadable configuration aborts the cycle.
func (e *Engine) RunCycle(ctx context.Context) (CycleSummary, error) {
	summary := CycleSummary{StartedAt: time.Now()}
	defer func() {
		summary.Duration = time.Since(summary.StartedAt).Round(time.Millisecond).String()
		e.sumMu.Lock()
		e.lastSum = summary
		e.sumMu.Unlock()
	}()

	cfg, err := settings.Load(ctx, e.store)
	if err != nil {
		// The cycle did run; a malformed config row needs an operator,
		// not a watchdog restart.
		e.beat(ctx)
		return summary, err
	}
	if cfg.Stopped {
		logger.Warnf("engine: BOT_STATUS is STOPPED, skipping cycle")
		summary.Stopped = true
		e.beat(ctx)
		return summary, nil
	}

	sweep, err := e.sweepTrailing(ctx, cfg)
	if err != nil {
		logger.Errorf("engine: trailing sweep failed: %v", err)
		summary.Errored++
	}
	summary.TrailingChecked = sweep.Checked
	summary.TrailingTriggered = len(sweep.Triggers)

	// Held symbols stay in the evaluation set even after falling out of
	// the scan list, so the judge can still emit ordinary SELLs for them.
	for _, symbol := range appendMissing(e.symbols, sweep.HeldSyms) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		e.evaluateInstrument(ctx, symbol, &summary)
	}

	e.beat(ctx)
	logger.Infof("engine: cycle done: evaluated=%d approved=%d rejected=%d executed=%d errored=%d trailing=%d/%d",
		summary.Evaluated, summary.Approved, summary.Rejected, summary.Executed, summary.Errored,
		summary.TrailingTriggered, summary.TrailingChecked)
	return summary, nil
}

// evaluateInstrument runs one symbol through snapshot, classifier,
// oracle and judge, executing an approved decision. Failures skip the
// symbol, never the cycle.
func (e *Engine) evaluateInstrument(ctx context.Context, symbol string, summary *CycleSummary) {
	// Settings are re-read for every evaluation so operator edits apply
	// mid-cycle.
	cfg, err := settings.Load(ctx, e.store)
	if err != nil {
		logger.Errorf("engine: %s: settings reload failed: %v", symbol, err)
		summary.Errored++
		return
	}
	if cfg.Stopped {
		return
	}
	simulated := cfg.Mode.Simulated()

	candles, err := e.source.FetchCandles(ctx, symbol, cfg.Timeframe, candleLimit)
	if err != nil {
		logger.Errorf("engine: %s: candle fetch failed, skipping: %v", symbol, err)
		summary.Errored++
		return
	}
	snap, err := market.BuildSnapshot(symbol, cfg.Timeframe, candles)
	if err != nil {
		logger.Errorf("engine: %s: snapshot failed, skipping: %v", symbol, err)
		summary.Errored++
		return
	}
	assessment := trend.Classify(snap)

	opinion, err := e.oracle.Advise(ctx, symbol, snap, assessment)
	if err != nil {
		// The guarded oracle degrades instead of failing; any error here
		// is unexpected but still only costs this instrument.
		logger.Errorf("engine: %s: oracle failed, skipping: %v", symbol, err)
		summary.Errored++
		return
	}

	portfolio, hasOpen, err := e.portfolioState(ctx, symbol, cfg)
	if err != nil {
		logger.Errorf("engine: %s: portfolio read failed, skipping: %v", symbol, err)
		summary.Errored++
		return
	}

	decision := judge.Evaluate(judge.Input{
		Symbol:          symbol,
		Opinion:         opinion,
		Snapshot:        snap,
		Trend:           assessment,
		Portfolio:       portfolio,
		HasOpenPosition: hasOpen,
		Settings:        cfg,
	})
	summary.Evaluated++

	if decision.Outcome != types.Approved {
		summary.Rejected++
		logger.Infof("engine: %s rejected: %s", symbol, decision.Reason)
		return
	}
	summary.Approved++
	logger.Infof("engine: %s approved: %s", symbol, decision.Reason)

	sig := types.Signal{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Type:      signalType(opinion.Recommendation),
		Price:     snap.Close,
		ATR:       snap.ATR,
		Size:      decision.Size,
		Status:    types.SignalPending,
		Reason:    decision.Reason,
		Simulated: simulated,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.CreateSignal(ctx, sig); err != nil {
		logger.Errorf("engine: %s: recording signal failed: %v", symbol, err)
		summary.Errored++
		return
	}
	if err := e.executor.Execute(ctx, sig); err != nil {
		logger.Errorf("engine: %s: execution failed: %v", symbol, err)
		summary.Errored++
		return
	}
	summary.Executed++
}

// SweepTrailingStops runs only the trailing sweep, for callers that want
// exits checked without a full evaluation pass.
func (e *Engine) SweepTrailingStops(ctx context.Context) (trailing.SweepResult, error) {
	cfg, err := settings.Load(ctx, e.store)
	if err != nil {
		return trailing.SweepResult{}, err
	}
	return e.sweepTrailing(ctx, cfg)
}

func (e *Engine) sweepTrailing(ctx context.Context, cfg settings.Settings) (trailing.SweepResult, error) {
	simulated := cfg.Mode.Simulated()
	res, err := e.monitor.Sweep(ctx, simulated, cfg.Trailing)
	if err != nil {
		return res, err
	}
	for _, trig := range res.Triggers {
		sig := types.Signal{
			ID:        uuid.NewString(),
			Symbol:    trig.Position.Symbol,
			Type:      types.SignalSell,
			Price:     trig.Price,
			Size:      0,
			Status:    types.SignalPending,
			Reason:    types.ExitReasonTrailingStop,
			Simulated: simulated,
			CreatedAt: time.Now().UTC(),
		}
		if err := e.store.CreateSignal(ctx, sig); err != nil {
			logger.Errorf("engine: %s: recording trailing exit failed: %v", sig.Symbol, err)
			res.Errored++
			continue
		}
		if err := e.executor.Execute(ctx, sig); err != nil {
			logger.Errorf("engine: %s: trailing exit failed: %v", sig.Symbol, err)
			res.Errored++
		}
	}
	return res, nil
}

// portfolioState reads the balance and exposure the judge sizes against.
func (e *Engine) portfolioState(ctx context.Context, symbol string, cfg settings.Settings) (types.PortfolioState, bool, error) {
	simulated := cfg.Mode.Simulated()

	var balance float64
	var err error
	if simulated {
		balance, err = e.store.Balance(ctx)
	} else {
		balance, err = e.source.FetchBalance(ctx, e.quoteAsset)
	}
	if err != nil {
		return types.PortfolioState{}, false, err
	}

	count, err := e.store.CountOpenPositions(ctx, simulated)
	if err != nil {
		return types.PortfolioState{}, false, err
	}
	open, err := e.store.FindOpenPosition(ctx, symbol, simulated)
	if err != nil {
		return types.PortfolioState{}, false, err
	}

	return types.PortfolioState{
		Mode:          cfg.Mode,
		Balance:       balance,
		OpenPositions: count,
	}, open != nil, nil
}

func signalType(rec types.Recommendation) types.SignalType {
	if rec == types.RecommendSell {
		return types.SignalSell
	}
	return types.SignalBuy
}

// appendMissing returns base plus any extras not already present,
// preserving order.
func appendMissing(base, extras []string) []string {
	out := make([]string, 0, len(base)+len(extras))
	seen := make(map[string]struct{}, len(base))
	for _, s := range base {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, s := range extras {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
