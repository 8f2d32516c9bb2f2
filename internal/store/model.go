package store

import (
	"time"

	"zenith/internal/types"
)

type positionModel struct {
	ID          int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Symbol      string  `gorm:"column:symbol;index:idx_positions_open,priority:2"`
	Side        string  `gorm:"column:side"`
	EntryPrice  float64 `gorm:"column:entry_price"`
	Quantity    float64 `gorm:"column:quantity"`
	IsOpen      bool    `gorm:"column:is_open;index:idx_positions_open,priority:1"`
	IsSimulated bool    `gorm:"column:is_simulated"`
	PeakPrice   float64 `gorm:"column:peak_price"`
	EntryATR    float64 `gorm:"column:entry_atr"`
	StopPrice   float64 `gorm:"column:stop_price"`
	ExitPrice   float64 `gorm:"column:exit_price"`
	RealizedPnL float64 `gorm:"column:realized_pnl"`
	ExitReason  string  `gorm:"column:exit_reason"`

	OpenedAtUnix int64 `gorm:"column:opened_at"`
	ClosedAtUnix int64 `gorm:"column:closed_at"` // 0 while open
}

func (positionModel) TableName() string { return "positions" }

type signalModel struct {
	ID          string  `gorm:"column:id;primaryKey"`
	Symbol      string  `gorm:"column:symbol;index"`
	Type        string  `gorm:"column:type"`
	Price       float64 `gorm:"column:price"`
	ATR         float64 `gorm:"column:atr"`
	Size        float64 `gorm:"column:size"`
	Status      string  `gorm:"column:status;index"`
	Reason      string  `gorm:"column:reason"`
	IsSimulated bool    `gorm:"column:is_simulated"`

	CreatedAtUnix int64 `gorm:"column:created_at"`
}

func (signalModel) TableName() string { return "trade_signals" }

type configModel struct {
	Key           string `gorm:"column:key;primaryKey"`
	Value         string `gorm:"column:value"`
	UpdatedAtUnix int64  `gorm:"column:updated_at"`
}

func (configModel) TableName() string { return "bot_config" }

// sim_portfolio holds a single row (id=1) with the paper balance.
type portfolioModel struct {
	ID            int64   `gorm:"column:id;primaryKey"`
	Balance       float64 `gorm:"column:balance"`
	UpdatedAtUnix int64   `gorm:"column:updated_at"`
}

func (portfolioModel) TableName() string { return "sim_portfolio" }

func positionFromModel(m positionModel) types.Position {
	p := types.Position{
		ID:          m.ID,
		Symbol:      m.Symbol,
		Side:        types.Side(m.Side),
		EntryPrice:  m.EntryPrice,
		Quantity:    m.Quantity,
		IsOpen:      m.IsOpen,
		Simulated:   m.IsSimulated,
		PeakPrice:   m.PeakPrice,
		EntryATR:    m.EntryATR,
		StopPrice:   m.StopPrice,
		ExitPrice:   m.ExitPrice,
		RealizedPnL: m.RealizedPnL,
		ExitReason:  m.ExitReason,
		OpenedAt:    time.Unix(m.OpenedAtUnix, 0).UTC(),
	}
	if m.ClosedAtUnix != 0 {
		p.ClosedAt = time.Unix(m.ClosedAtUnix, 0).UTC()
	}
	return p
}

func positionToModel(p types.Position) positionModel {
	m := positionModel{
		ID:           p.ID,
		Symbol:       p.Symbol,
		Side:         string(p.Side),
		EntryPrice:   p.EntryPrice,
		Quantity:     p.Quantity,
		IsOpen:       p.IsOpen,
		IsSimulated:  p.Simulated,
		PeakPrice:    p.PeakPrice,
		EntryATR:     p.EntryATR,
		StopPrice:    p.StopPrice,
		ExitPrice:    p.ExitPrice,
		RealizedPnL:  p.RealizedPnL,
		ExitReason:   p.ExitReason,
		OpenedAtUnix: p.OpenedAt.Unix(),
	}
	if !p.ClosedAt.IsZero() {
		m.ClosedAtUnix = p.ClosedAt.Unix()
	}
	return m
}

func signalFromModel(m signalModel) types.Signal {
	return types.Signal{
		ID:        m.ID,
		Symbol:    m.Symbol,
		Type:      types.SignalType(m.Type),
		Price:     m.Price,
		ATR:       m.ATR,
		Size:      m.Size,
		Status:    types.SignalStatus(m.Status),
		Reason:    m.Reason,
		Simulated: m.IsSimulated,
		CreatedAt: time.Unix(m.CreatedAtUnix, 0).UTC(),
	}
}

func signalToModel(s types.Signal) signalModel {
	return signalModel{
		ID:            s.ID,
		Symbol:        s.Symbol,
		Type:          string(s.Type),
		Price:         s.Price,
		ATR:           s.ATR,
		Size:          s.Size,
		Status:        string(s.Status),
		Reason:        s.Reason,
		IsSimulated:   s.Simulated,
		CreatedAtUnix: s.CreatedAt.Unix(),
	}
}
