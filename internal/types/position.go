package types

import "time"

// Side of a position. Only long spot positions are taken; SHORT exists so
// stored rows from other tooling remain representable.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Position is one spot holding. Created by the executor on a filled BUY,
// peak-updated by the trailing monitor, closed exactly once by the
// executor. ExitPrice/RealizedPnL/ExitReason are set together at close.
type Position struct {
	ID         int64
	Symbol     string
	Side       Side
	EntryPrice float64
	Quantity   float64
	IsOpen     bool
	Simulated  bool

	// Trailing-stop bookkeeping.
	PeakPrice float64 // highest price seen since entry, never decreases
	EntryATR  float64 // volatility range at entry; 0 means unknown
	StopPrice float64 // last computed trailing stop, 0 before activation

	ExitPrice   float64
	RealizedPnL float64
	ExitReason  string

	OpenedAt time.Time
	ClosedAt time.Time
}

// CostBasis is the quote-currency amount spent opening the position.
func (p Position) CostBasis() float64 { return p.EntryPrice * p.Quantity }

// SignalStatus tracks a signal through the execution pipeline.
type SignalStatus string

const (
	SignalPending  SignalStatus = "PENDING"
	SignalRejected SignalStatus = "REJECTED"
	SignalExecuted SignalStatus = "EXECUTED"
	SignalFailed   SignalStatus = "FAILED"
)

// SignalType is the action a signal requests.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
)

// ExitReasonTrailingStop marks SELLs emitted by the trailing monitor.
const ExitReasonTrailingStop = "TRAILING_STOP"

// Signal is one actionable intent, recorded before execution so the
// executor can be idempotent across duplicate invocations.
type Signal struct {
	ID        string
	Symbol    string
	Type      SignalType
	Price     float64 // reference price at signal time
	ATR       float64 // volatility range at signal time
	Size      float64 // quote notional for BUYs; ignored for SELLs
	Status    SignalStatus
	Reason    string
	Simulated bool
	CreatedAt time.Time
}

// OrderResult is what the exchange reports after a market order.
type OrderResult struct {
	OrderID      string
	Price        float64 // price reported directly by the order, may be 0
	AvgFillPrice float64 // average fill price, may be 0
	Quantity     float64 // filled base quantity
}
