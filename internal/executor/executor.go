// Package executor turns approved signals into position mutations, on
// the exchange in live mode or against the paper book in paper mode.
package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"zenith/internal/logger"
	"zenith/internal/market"
	"zenith/internal/pkg/errs"
	"zenith/internal/types"
)

// Store is the slice of persistence the executor needs.
type Store interface {
	GetSignal(ctx context.Context, id string) (*types.Signal, error)
	CreateSignal(ctx context.Context, sig types.Signal) error
	UpdateSignalStatus(ctx context.Context, id string, status types.SignalStatus, reason string) error

	FindOpenPosition(ctx context.Context, symbol string, simulated bool) (*types.Position, error)
	CreatePosition(ctx context.Context, p *types.Position) error
	ClosePosition(ctx context.Context, id int64, exitPrice, realizedPnL float64, reason string) error

	Balance(ctx context.Context) (float64, error)
	OpenPaperPosition(ctx context.Context, p *types.Position, newBalance float64) error
	ClosePaperPosition(ctx context.Context, id int64, exitPrice, realizedPnL float64, reason string, newBalance float64) error
}

// Executor fills signals. All paper-book mutations run under one mutex;
// the balance is the only contended resource in the core.
type Executor struct {
	store  Store
	source market.Source

	paperMu sync.Mutex
}

func New(store Store, source market.Source) *Executor {
	return &Executor{store: store, source: source}
}

// Execute fills one signal. It is idempotent: a signal that is already
// EXECUTED is a successful no-op, so duplicate invocations can never
// create a second position or double-move the balance. Any failure marks
// the signal FAILED and leaves positions untouched.
func (e *Executor) Execute(ctx context.Context, sig types.Signal) error {
	stored, err := e.store.GetSignal(ctx, sig.ID)
	if err != nil {
		return err
	}
	if stored == nil {
		sig.Status = types.SignalPending
		if err := e.store.CreateSignal(ctx, sig); err != nil {
			return err
		}
	} else if stored.Status == types.SignalExecuted {
		logger.Infof("executor: signal %s already executed, skipping", sig.ID)
		return nil
	}

	var execErr error
	if sig.Simulated {
		execErr = e.executePaper(ctx, sig)
	} else {
		execErr = e.executeLive(ctx, sig)
	}

	if execErr != nil {
		if err := e.store.UpdateSignalStatus(ctx, sig.ID, types.SignalFailed, execErr.Error()); err != nil {
			logger.Errorf("executor: marking signal %s FAILED: %v", sig.ID, err)
		}
		return execErr
	}
	if err := e.store.UpdateSignalStatus(ctx, sig.ID, types.SignalExecuted, ""); err != nil {
		logger.Errorf("executor: marking signal %s EXECUTED: %v", sig.ID, err)
		return err
	}
	return nil
}

// executePaper fills against the simulated book at the live ticker price.
// The whole read-modify-write of the balance sits inside the mutex.
func (e *Executor) executePaper(ctx context.Context, sig types.Signal) error {
	quote, err := e.source.FetchPrice(ctx, sig.Symbol)
	if err != nil {
		return err
	}
	fillPrice := quote.Last
	if fillPrice <= 0 {
		return &errs.ValidationError{Field: "fill_price", Reason: fmt.Sprintf("non-positive ticker for %s", sig.Symbol)}
	}

	e.paperMu.Lock()
	defer e.paperMu.Unlock()

	balance, err := e.store.Balance(ctx)
	if err != nil {
		return err
	}
	bal := decimal.NewFromFloat(balance)
	price := decimal.NewFromFloat(fillPrice)

	switch sig.Type {
	case types.SignalBuy:
		cost := decimal.NewFromFloat(sig.Size)
		if cost.LessThanOrEqual(decimal.Zero) {
			return &errs.ValidationError{Field: "size", Reason: "buy size must be positive"}
		}
		if cost.GreaterThan(bal) {
			return &errs.InsufficientBalanceError{Balance: balance, Cost: sig.Size}
		}
		quantity := cost.Div(price)
		newBal := bal.Sub(cost)

		pos := types.Position{
			Symbol:     sig.Symbol,
			Side:       types.SideLong,
			EntryPrice: fillPrice,
			Quantity:   quantity.InexactFloat64(),
			Simulated:  true,
			PeakPrice:  fillPrice,
			EntryATR:   sig.ATR,
		}
		if err := e.store.OpenPaperPosition(ctx, &pos, newBal.InexactFloat64()); err != nil {
			return err
		}
		logger.Infof("executor (paper): BUY %.6f %s at %.4f, balance %.2f -> %.2f",
			pos.Quantity, sig.Symbol, fillPrice, balance, newBal.InexactFloat64())
		return nil

	case types.SignalSell:
		pos, err := e.store.FindOpenPosition(ctx, sig.Symbol, true)
		if err != nil {
			return err
		}
		if pos == nil {
			return &errs.ValidationError{Field: "position", Reason: fmt.Sprintf("no open paper position for %s", sig.Symbol)}
		}
		quantity := decimal.NewFromFloat(pos.Quantity)
		revenue := quantity.Mul(price)
		pnl := revenue.Sub(decimal.NewFromFloat(pos.CostBasis()))
		newBal := bal.Add(revenue)

		if err := e.store.ClosePaperPosition(ctx, pos.ID, fillPrice, pnl.InexactFloat64(), sig.Reason, newBal.InexactFloat64()); err != nil {
			return err
		}
		logger.Infof("executor (paper): SELL %.6f %s at %.4f, pnl %.2f, balance %.2f -> %.2f",
			pos.Quantity, sig.Symbol, fillPrice, pnl.InexactFloat64(), balance, newBal.InexactFloat64())
		return nil

	default:
		return &errs.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown signal type %q", sig.Type)}
	}
}

func (e *Executor) executeLive(ctx context.Context, sig types.Signal) error {
	switch sig.Type {
	case types.SignalBuy:
		if sig.Size <= 0 {
			return &errs.ValidationError{Field: "size", Reason: "buy size must be positive"}
		}
		order, err := e.source.PlaceMarketOrder(ctx, market.OrderRequest{
			Symbol:        sig.Symbol,
			Side:          types.SignalBuy,
			QuoteQuantity: sig.Size,
		})
		if err != nil {
			return err
		}
		if order.Quantity <= 0 {
			return &errs.ValidationError{Field: "fill", Reason: fmt.Sprintf("order %s filled zero quantity", order.OrderID)}
		}
		fillPrice, err := e.resolveFillPrice(ctx, sig.Symbol, order)
		if err != nil {
			return err
		}
		pos := types.Position{
			Symbol:     sig.Symbol,
			Side:       types.SideLong,
			EntryPrice: fillPrice,
			Quantity:   order.Quantity,
			Simulated:  false,
			PeakPrice:  fillPrice,
			EntryATR:   sig.ATR,
		}
		if err := e.store.CreatePosition(ctx, &pos); err != nil {
			return err
		}
		logger.Infof("executor (live): BUY %.6f %s at %.4f (order %s)", order.Quantity, sig.Symbol, fillPrice, order.OrderID)
		return nil

	case types.SignalSell:
		pos, err := e.store.FindOpenPosition(ctx, sig.Symbol, false)
		if err != nil {
			return err
		}
		if pos == nil {
			return &errs.ValidationError{Field: "position", Reason: fmt.Sprintf("no open position for %s", sig.Symbol)}
		}
		order, err := e.source.PlaceMarketOrder(ctx, market.OrderRequest{
			Symbol:       sig.Symbol,
			Side:         types.SignalSell,
			BaseQuantity: pos.Quantity,
		})
		if err != nil {
			return err
		}
		fillPrice, err := e.resolveFillPrice(ctx, sig.Symbol, order)
		if err != nil {
			return err
		}
		revenue := fillPrice * pos.Quantity
		pnl := revenue - pos.CostBasis()
		if err := e.store.ClosePosition(ctx, pos.ID, fillPrice, pnl, sig.Reason); err != nil {
			return err
		}
		logger.Infof("executor (live): SELL %.6f %s at %.4f, pnl %.2f (order %s)", pos.Quantity, sig.Symbol, fillPrice, pnl, order.OrderID)
		return nil

	default:
		return &errs.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown signal type %q", sig.Type)}
	}
}

// resolveFillPrice tries the order's own price, then its average fill
// price, then a fresh ticker. A zero price is never recorded as a basis;
// if every source fails, the execution fails.
func (e *Executor) resolveFillPrice(ctx context.Context, symbol string, order types.OrderResult) (float64, error) {
	if order.Price > 0 {
		return order.Price, nil
	}
	if order.AvgFillPrice > 0 {
		return order.AvgFillPrice, nil
	}
	quote, err := e.source.FetchPrice(ctx, symbol)
	if err == nil && quote.Last > 0 {
		return quote.Last, nil
	}
	return 0, &errs.ValidationError{
		Field:  "fill_price",
		Reason: fmt.Sprintf("order %s for %s reported no usable fill price", order.OrderID, symbol),
	}
}
