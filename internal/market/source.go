// Package market defines the exchange-facing data and order surface and
// the indicator snapshot built from it.
package market

import (
	"context"

	"zenith/internal/types"
)

// OrderRequest is one market order. BUYs are sized by quote notional
// (QuoteQuantity), SELLs by base quantity (BaseQuantity); the other field
// is zero.
type OrderRequest struct {
	Symbol        string
	Side          types.SignalType
	QuoteQuantity float64
	BaseQuantity  float64
}

// Source is the exchange behind the engine. Implementations must be safe
// for use from the trading cycle and the status server concurrently.
type Source interface {
	// FetchCandles returns up to limit closed OHLCV bars, oldest first.
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]types.Candle, error)
	// FetchPrice returns a fresh ticker read.
	FetchPrice(ctx context.Context, symbol string) (types.PriceQuote, error)
	// FetchBalance returns the free balance of the quote asset.
	FetchBalance(ctx context.Context, asset string) (float64, error)
	// PlaceMarketOrder submits a market order and reports the fill.
	PlaceMarketOrder(ctx context.Context, req OrderRequest) (types.OrderResult, error)
}
