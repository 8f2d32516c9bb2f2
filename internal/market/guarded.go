package market

import (
	"context"
	"fmt"
	"time"

	"zenith/internal/pkg/cache"
	"zenith/internal/pkg/circuit"
	"zenith/internal/pkg/errs"
	"zenith/internal/pkg/ratelimit"
	"zenith/internal/pkg/retry"
	"zenith/internal/types"
)

const (
	candleTTL     = 30 * time.Second
	priceTTL      = 5 * time.Second
	limiterWait   = 10 * time.Second
	retryAttempts = 3
	retryBase     = 500 * time.Millisecond
	retryMax      = 5 * time.Second
)

// Guarded wraps a Source with the resilience stack: every call passes the
// rate limiter and circuit breaker, reads are retried with backoff, and
// candle and ticker fetches are served from short TTL caches. The price
// TTL is a few seconds, just enough to de-duplicate the reads the
// trailing sweep, the executor and the status handlers issue for the
// same symbol within one cycle. Orders are never cached and never
// retried; a second submit could double-fill.
type Guarded struct {
	inner   Source
	breaker *circuit.Breaker
	limiter *ratelimit.Limiter
	candles *cache.Cache[[]types.Candle]
	prices  *cache.Cache[types.PriceQuote]
}

// NewGuarded wires the resilience stack around inner.
func NewGuarded(inner Source, breaker *circuit.Breaker, limiter *ratelimit.Limiter) *Guarded {
	return &Guarded{
		inner:   inner,
		breaker: breaker,
		limiter: limiter,
		candles: cache.New[[]types.Candle](candleTTL, 256),
		prices:  cache.New[types.PriceQuote](priceTTL, 256),
	}
}

// Breaker exposes the breaker for the status endpoint.
func (g *Guarded) Breaker() *circuit.Breaker { return g.breaker }

// LimiterStats exposes limiter counters for the status endpoint.
func (g *Guarded) LimiterStats() ratelimit.Stats { return g.limiter.Stats() }

// CacheStats exposes candle cache counters for the status endpoint.
func (g *Guarded) CacheStats() cache.Stats { return g.candles.Stats() }

// PriceCacheStats exposes ticker cache counters for the status endpoint.
func (g *Guarded) PriceCacheStats() cache.Stats { return g.prices.Stats() }

func (g *Guarded) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]types.Candle, error) {
	key := fmt.Sprintf("%s|%s|%d", symbol, timeframe, limit)
	if cached, ok := g.candles.Get(key); ok {
		return cached, nil
	}
	var out []types.Candle
	err := retry.Do(ctx, retryAttempts, retryBase, retryMax, func() error {
		return g.guard(ctx, func() error {
			var err error
			out, err = g.inner.FetchCandles(ctx, symbol, timeframe, limit)
			return err
		})
	})
	if err != nil {
		return nil, errs.External("market", "fetch candles", err)
	}
	g.candles.Set(key, out, 0)
	return out, nil
}

func (g *Guarded) FetchPrice(ctx context.Context, symbol string) (types.PriceQuote, error) {
	if cached, ok := g.prices.Get(symbol); ok {
		return cached, nil
	}
	var out types.PriceQuote
	err := retry.Do(ctx, retryAttempts, retryBase, retryMax, func() error {
		return g.guard(ctx, func() error {
			var err error
			out, err = g.inner.FetchPrice(ctx, symbol)
			return err
		})
	})
	if err != nil {
		return types.PriceQuote{}, errs.External("market", "fetch price", err)
	}
	g.prices.Set(symbol, out, 0)
	return out, nil
}

func (g *Guarded) FetchBalance(ctx context.Context, asset string) (float64, error) {
	var out float64
	err := retry.Do(ctx, retryAttempts, retryBase, retryMax, func() error {
		return g.guard(ctx, func() error {
			var err error
			out, err = g.inner.FetchBalance(ctx, asset)
			return err
		})
	})
	if err != nil {
		return 0, errs.External("market", "fetch balance", err)
	}
	return out, nil
}

func (g *Guarded) PlaceMarketOrder(ctx context.Context, req OrderRequest) (types.OrderResult, error) {
	var out types.OrderResult
	err := g.guard(ctx, func() error {
		var err error
		out, err = g.inner.PlaceMarketOrder(ctx, req)
		return err
	})
	if err != nil {
		return types.OrderResult{}, errs.External("market", "place order", err)
	}
	return out, nil
}

// guard runs fn behind the limiter and breaker.
func (g *Guarded) guard(ctx context.Context, fn func() error) error {
	if err := g.limiter.Wait(ctx, limiterWait); err != nil {
		return err
	}
	return g.breaker.Execute(fn)
}

var _ Source = (*Guarded)(nil)
