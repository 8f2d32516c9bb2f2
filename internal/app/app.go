// Package app wires the components together and runs them.
package app

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"zenith/internal/config"
	"zenith/internal/engine"
	"zenith/internal/executor"
	"zenith/internal/logger"
	"zenith/internal/market"
	"zenith/internal/market/binance"
	"zenith/internal/oracle"
	"zenith/internal/pkg/circuit"
	"zenith/internal/pkg/ratelimit"
	"zenith/internal/scheduler"
	"zenith/internal/settings"
	"zenith/internal/store"
	statushttp "zenith/internal/transport/http/status"
	"zenith/internal/trailing"
)

// App owns every long-lived component of the bot.
type App struct {
	cfg    *config.Config
	store  *store.Store
	engine *engine.Engine
	market *market.Guarded
	oracle *oracle.Guarded
	server *statushttp.Server
}

// NewApp builds the full dependency graph from the static config.
func NewApp(cfg *config.Config) (*App, error) {
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := st.SeedConfig(ctx, settings.Defaults()); err != nil {
		return nil, err
	}
	if err := st.EnsureBalance(ctx, cfg.Trading.InitialBalance); err != nil {
		return nil, err
	}

	// Market data tolerates more failures and recovers quickly; the
	// oracle trips sooner and stays open longer, reflecting per-call cost.
	marketBreaker := circuit.NewBreaker("market", cfg.Exchange.BreakerThreshold, 2, cfg.Exchange.BreakerTimeout)
	oracleBreaker := circuit.NewBreaker("oracle", cfg.Oracle.BreakerThreshold, 1, cfg.Oracle.BreakerTimeout)
	limiter := ratelimit.NewLimiter(cfg.Exchange.MaxCallsPerMinute, time.Minute)

	source := binance.New(binance.Config{
		APIKey:      cfg.Exchange.APIKey,
		APISecret:   cfg.Exchange.APISecret,
		BaseURL:     cfg.Exchange.BaseURL,
		HTTPTimeout: cfg.Exchange.HTTPTimeout,
	})
	guardedMarket := market.NewGuarded(source, marketBreaker, limiter)

	oracleClient := oracle.NewClient(oracle.Config{
		BaseURL:     cfg.Oracle.BaseURL,
		APIKey:      cfg.Oracle.APIKey,
		Model:       cfg.Oracle.Model,
		Temperature: cfg.Oracle.Temperature,
		Timeout:     cfg.Oracle.Timeout,
	})
	guardedOracle := oracle.NewGuarded(oracleClient, oracleBreaker)

	monitor := trailing.NewMonitor(guardedMarket, st)
	exec := executor.New(st, guardedMarket)
	eng := engine.New(st, guardedMarket, guardedOracle, monitor, exec, cfg.Trading.Symbols, cfg.Trading.QuoteAsset)

	app := &App{
		cfg:    cfg,
		store:  st,
		engine: eng,
		market: guardedMarket,
		oracle: guardedOracle,
	}
	if cfg.Server.Enabled {
		srv, err := statushttp.NewServer(statushttp.ServerConfig{
			Addr:   cfg.Server.Listen,
			Engine: eng,
			Store:  st,
			Market: guardedMarket,
			Oracle: guardedOracle,
		})
		if err != nil {
			return nil, err
		}
		app.server = srv
	}
	return app, nil
}

// Run drives the cycle loop, the watchdog and the status server until
// ctx is canceled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()

	interval := a.cycleInterval(ctx)
	logger.Infof("app: starting, symbols=%v interval=%s", a.cfg.Trading.Symbols, interval)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sched := scheduler.NewIntervalScheduler(gctx, interval)
		sched.RunImmediately = true
		sched.Start(func() {
			if _, err := a.engine.RunCycle(gctx); err != nil {
				logger.Errorf("app: cycle failed: %v", err)
			}
		})
		return nil
	})

	g.Go(func() error {
		scheduler.NewWatchdog(a.engine.Heartbeat, a.cfg.Watchdog.MaxHeartbeatAge).Run(gctx)
		return nil
	})

	if a.server != nil {
		g.Go(func() error {
			logger.Infof("app: status server listening on %s", a.server.Addr())
			return a.server.Start(gctx)
		})
	}

	return g.Wait()
}

// cycleInterval reads the operator-configured cadence, falling back to
// two minutes when unset or unreadable.
func (a *App) cycleInterval(ctx context.Context) time.Duration {
	raw, ok, err := a.store.GetConfig(ctx, settings.KeyCycleMinutes)
	if err != nil || !ok {
		return 2 * time.Minute
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(minutes) * time.Minute
}
