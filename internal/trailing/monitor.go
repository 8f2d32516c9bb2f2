// Package trailing ratchets a peak price per open position and emits an
// exit once price falls to the trailing stop below that peak.
package trailing

import (
	"context"

	"zenith/internal/logger"
	"zenith/internal/settings"
	"zenith/internal/types"
)

// PriceSource is the guarded ticker read the sweep uses.
type PriceSource interface {
	FetchPrice(ctx context.Context, symbol string) (types.PriceQuote, error)
}

// Store is the slice of persistence the monitor needs.
type Store interface {
	ListOpenPositions(ctx context.Context, simulated bool) ([]types.Position, error)
	UpdatePositionStops(ctx context.Context, id int64, peakPrice, stopPrice float64) error
}

// Trigger is one position whose stop was hit during a sweep.
type Trigger struct {
	Position types.Position
	Price    float64 // observed price that crossed the stop
	Stop     float64
}

// SweepResult summarizes one pass over the open positions.
type SweepResult struct {
	Checked   int
	Triggers  []Trigger
	Errored   int
	HeldSyms  []string // symbols with open positions, for re-injection
}

// Monitor sweeps every open position each cycle, regardless of whether
// the symbol is still in the scan list.
type Monitor struct {
	prices PriceSource
	store  Store
}

func NewMonitor(prices PriceSource, store Store) *Monitor {
	return &Monitor{prices: prices, store: store}
}

// Sweep evaluates all open positions once. Each position can trigger at
// most once per sweep; a price-fetch failure skips that position and the
// sweep continues.
func (m *Monitor) Sweep(ctx context.Context, simulated bool, cfg settings.Trailing) (SweepResult, error) {
	var res SweepResult

	positions, err := m.store.ListOpenPositions(ctx, simulated)
	if err != nil {
		return res, err
	}

	for _, pos := range positions {
		res.HeldSyms = append(res.HeldSyms, pos.Symbol)
		if !cfg.Enabled {
			continue
		}
		res.Checked++

		quote, err := m.prices.FetchPrice(ctx, pos.Symbol)
		if err != nil {
			logger.Warnf("trailing: price fetch for %s failed, skipping: %v", pos.Symbol, err)
			res.Errored++
			continue
		}

		peak, stop, triggered := Evaluate(pos, quote.Last, cfg)
		if peak != pos.PeakPrice || stop != pos.StopPrice {
			if err := m.store.UpdatePositionStops(ctx, pos.ID, peak, stop); err != nil {
				logger.Warnf("trailing: persisting peak for %s failed: %v", pos.Symbol, err)
				res.Errored++
				// Trigger handling continues; a stale stored peak only
				// delays re-activation after a restart.
			}
		}
		if triggered {
			pos.PeakPrice = peak
			pos.StopPrice = stop
			res.Triggers = append(res.Triggers, Trigger{Position: pos, Price: quote.Last, Stop: stop})
			logger.Infof("trailing: %s stop hit (price %.4f <= stop %.4f, peak %.4f)", pos.Symbol, quote.Last, stop, peak)
		}
	}
	return res, nil
}

// Evaluate applies one price observation to a position. The returned peak
// never decreases. No exit can trigger until the peak has cleared the
// activation profit; the stop tracks the peak using the entry ATR when
// available, otherwise the fixed percentage.
func Evaluate(pos types.Position, price float64, cfg settings.Trailing) (peak, stop float64, triggered bool) {
	peak = pos.PeakPrice
	if peak <= 0 {
		peak = pos.EntryPrice
	}
	if price > peak {
		peak = price
	}
	if pos.EntryPrice <= 0 {
		return peak, 0, false
	}

	profit := (peak - pos.EntryPrice) / pos.EntryPrice
	if profit < cfg.MinProfitPct {
		return peak, 0, false
	}

	if cfg.UseATR && pos.EntryATR > 0 {
		stop = peak - pos.EntryATR*cfg.ATRMultiplier
	} else {
		stop = peak * (1 - cfg.StopPct)
	}
	return peak, stop, price <= stop
}
