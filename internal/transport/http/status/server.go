// Package statushttp serves the read-only status API consumed by the
// dashboard: health, cycle summary, resilience counters and positions.
package statushttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"zenith/internal/engine"
	"zenith/internal/market"
	"zenith/internal/oracle"
	"zenith/internal/settings"
	"zenith/internal/store"
)

// Server exposes /healthz, /api/status and /api/positions.
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig lists the dependencies the handlers read from.
type ServerConfig struct {
	Addr   string
	Engine *engine.Engine
	Store  *store.Store
	Market *market.Guarded
	Oracle *oracle.Guarded
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil || cfg.Store == nil {
		return nil, errors.New("status server requires engine and store")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/api/status", statusHandler(cfg))
	router.GET("/api/positions", positionsHandler(cfg))

	return &Server{addr: cfg.Addr, router: router}, nil
}

func statusHandler(cfg ServerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		body := gin.H{
			"heartbeat":  cfg.Engine.Heartbeat().UTC().Format(time.RFC3339),
			"last_cycle": cfg.Engine.LastSummary(),
		}

		if current, err := settings.Load(ctx, cfg.Store); err == nil {
			body["mode"] = current.Mode
			body["stopped"] = current.Stopped
			if current.Mode.Simulated() {
				if balance, err := cfg.Store.Balance(ctx); err == nil {
					body["paper_balance"] = balance
				}
			}
		}
		if cfg.Market != nil {
			body["market_breaker"] = cfg.Market.Breaker().Stats()
			body["rate_limiter"] = cfg.Market.LimiterStats()
			body["candle_cache"] = cfg.Market.CacheStats()
			body["price_cache"] = cfg.Market.PriceCacheStats()
		}
		if cfg.Oracle != nil {
			body["oracle_breaker"] = cfg.Oracle.Breaker().Stats()
		}
		c.JSON(http.StatusOK, body)
	}
}

func positionsHandler(cfg ServerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		current, err := settings.Load(ctx, cfg.Store)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		positions, err := cfg.Store.ListOpenPositions(ctx, current.Mode.Simulated())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]gin.H, 0, len(positions))
		for _, pos := range positions {
			item := gin.H{"position": pos}
			if cfg.Market != nil {
				// Best effort; a failed quote just omits the PnL fields.
				if quote, err := cfg.Market.FetchPrice(ctx, pos.Symbol); err == nil && quote.Last > 0 {
					item["last_price"] = quote.Last
					item["unrealized_pnl"] = (quote.Last - pos.EntryPrice) * pos.Quantity
				}
			}
			items = append(items, item)
		}
		c.JSON(http.StatusOK, gin.H{"mode": current.Mode, "positions": items})
	}
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler { return s.router }
