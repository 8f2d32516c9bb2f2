// Package store persists positions, trade signals, the paper portfolio
// and the operator-editable configuration in SQLite via gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"zenith/internal/pkg/errs"
	"zenith/internal/types"
)

// ErrPositionClosed is returned when a close races with another close of
// the same position. The losing writer must treat the exit as already
// handled.
var ErrPositionClosed = errors.New("position already closed")

// Store is the single SQLite-backed persistence layer.
type Store struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// Open opens (and migrates) the database at path. A WAL journal keeps the
// status HTTP reads from blocking the trading cycle's writes.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store: database path is empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&positionModel{},
		&signalModel{},
		&configModel{},
		&portfolioModel{},
	); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for concurrent HTTP reads while
	// keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db, nowFn: time.Now}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- positions ---

// CreatePosition inserts an open position and fills in its assigned ID.
func (s *Store) CreatePosition(ctx context.Context, p *types.Position) error {
	m := positionToModel(*p)
	m.IsOpen = true
	if m.OpenedAtUnix == 0 || m.OpenedAtUnix < 0 {
		m.OpenedAtUnix = s.nowFn().Unix()
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return errs.Persistence("create position", err)
	}
	p.ID = m.ID
	p.IsOpen = true
	p.OpenedAt = time.Unix(m.OpenedAtUnix, 0).UTC()
	return nil
}

// ClosePosition marks an open position as closed and records the exit in
// one statement. The is_open guard makes a double close a no-op reported
// as ErrPositionClosed.
func (s *Store) ClosePosition(ctx context.Context, id int64, exitPrice, realizedPnL float64, reason string) error {
	res := s.db.WithContext(ctx).Model(&positionModel{}).
		Where("id = ? AND is_open = ?", id, true).
		Updates(map[string]any{
			"is_open":      false,
			"exit_price":   exitPrice,
			"realized_pnl": realizedPnL,
			"exit_reason":  reason,
			"closed_at":    s.nowFn().Unix(),
		})
	if res.Error != nil {
		return errs.Persistence("close position", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrPositionClosed
	}
	return nil
}

// UpdatePositionStops persists the trailing monitor's peak and stop so a
// restart does not reset the ratchet.
func (s *Store) UpdatePositionStops(ctx context.Context, id int64, peakPrice, stopPrice float64) error {
	err := s.db.WithContext(ctx).Model(&positionModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"peak_price": peakPrice,
			"stop_price": stopPrice,
		}).Error
	if err != nil {
		return errs.Persistence("update position stops", err)
	}
	return nil
}

// FindOpenPosition returns the most recently opened position for symbol,
// or nil when none is open.
func (s *Store) FindOpenPosition(ctx context.Context, symbol string, simulated bool) (*types.Position, error) {
	var m positionModel
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND is_open = ? AND is_simulated = ?", symbol, true, simulated).
		Order("opened_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence("find open position", err)
	}
	p := positionFromModel(m)
	return &p, nil
}

// ListOpenPositions returns every open position, oldest first.
func (s *Store) ListOpenPositions(ctx context.Context, simulated bool) ([]types.Position, error) {
	var rows []positionModel
	err := s.db.WithContext(ctx).
		Where("is_open = ? AND is_simulated = ?", true, simulated).
		Order("opened_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errs.Persistence("list open positions", err)
	}
	out := make([]types.Position, 0, len(rows))
	for _, m := range rows {
		out = append(out, positionFromModel(m))
	}
	return out, nil
}

// CountOpenPositions counts open positions for the mode.
func (s *Store) CountOpenPositions(ctx context.Context, simulated bool) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&positionModel{}).
		Where("is_open = ? AND is_simulated = ?", true, simulated).
		Count(&n).Error
	if err != nil {
		return 0, errs.Persistence("count open positions", err)
	}
	return int(n), nil
}

// --- signals ---

// CreateSignal inserts a signal row.
func (s *Store) CreateSignal(ctx context.Context, sig types.Signal) error {
	m := signalToModel(sig)
	if m.CreatedAtUnix <= 0 {
		m.CreatedAtUnix = s.nowFn().Unix()
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return errs.Persistence("create signal", err)
	}
	return nil
}

// GetSignal loads a signal by ID; nil when unknown.
func (s *Store) GetSignal(ctx context.Context, id string) (*types.Signal, error) {
	var m signalModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence("get signal", err)
	}
	sig := signalFromModel(m)
	return &sig, nil
}

// UpdateSignalStatus records the terminal status of a signal.
func (s *Store) UpdateSignalStatus(ctx context.Context, id string, status types.SignalStatus, reason string) error {
	updates := map[string]any{"status": string(status)}
	if reason != "" {
		updates["reason"] = reason
	}
	err := s.db.WithContext(ctx).Model(&signalModel{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return errs.Persistence("update signal status", err)
	}
	return nil
}

// --- config ---

// GetConfig returns the raw value for key; ok is false when absent.
func (s *Store) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var m configModel
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.Persistence("get config", err)
	}
	return m.Value, true, nil
}

// SetConfig upserts a config row.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	m := configModel{Key: key, Value: value, UpdatedAtUnix: s.nowFn().Unix()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return errs.Persistence("set config", err)
	}
	return nil
}

// AllConfig loads every config row as a key/value map.
func (s *Store) AllConfig(ctx context.Context) (map[string]string, error) {
	var rows []configModel
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, errs.Persistence("load config", err)
	}
	out := make(map[string]string, len(rows))
	for _, m := range rows {
		out[m.Key] = m.Value
	}
	return out, nil
}

// SeedConfig inserts defaults for keys that have no row yet, leaving
// operator-edited values untouched.
func (s *Store) SeedConfig(ctx context.Context, defaults map[string]string) error {
	now := s.nowFn().Unix()
	for k, v := range defaults {
		m := configModel{Key: k, Value: v, UpdatedAtUnix: now}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&m).Error
		if err != nil {
			return errs.Persistence("seed config", err)
		}
	}
	return nil
}

// OpenPaperPosition creates the position and debits the paper balance in
// one transaction, so a crash between the two cannot leave a position
// without its cost taken out.
func (s *Store) OpenPaperPosition(ctx context.Context, p *types.Position, newBalance float64) error {
	m := positionToModel(*p)
	m.IsOpen = true
	m.IsSimulated = true
	if m.OpenedAtUnix <= 0 {
		m.OpenedAtUnix = s.nowFn().Unix()
	}
	now := s.nowFn().Unix()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		return tx.Model(&portfolioModel{}).
			Where("id = ?", portfolioRowID).
			Updates(map[string]any{"balance": newBalance, "updated_at": now}).Error
	})
	if err != nil {
		return errs.Persistence("open paper position", err)
	}
	p.ID = m.ID
	p.IsOpen = true
	p.Simulated = true
	p.OpenedAt = time.Unix(m.OpenedAtUnix, 0).UTC()
	return nil
}

// ClosePaperPosition closes the position and credits the paper balance in
// one transaction. A position already closed by a racing writer aborts
// the transaction with ErrPositionClosed, leaving the balance untouched.
func (s *Store) ClosePaperPosition(ctx context.Context, id int64, exitPrice, realizedPnL float64, reason string, newBalance float64) error {
	now := s.nowFn().Unix()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&positionModel{}).
			Where("id = ? AND is_open = ?", id, true).
			Updates(map[string]any{
				"is_open":      false,
				"exit_price":   exitPrice,
				"realized_pnl": realizedPnL,
				"exit_reason":  reason,
				"closed_at":    now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPositionClosed
		}
		return tx.Model(&portfolioModel{}).
			Where("id = ?", portfolioRowID).
			Updates(map[string]any{"balance": newBalance, "updated_at": now}).Error
	})
	if errors.Is(err, ErrPositionClosed) {
		return ErrPositionClosed
	}
	if err != nil {
		return errs.Persistence("close paper position", err)
	}
	return nil
}

// --- paper portfolio ---

const portfolioRowID = 1

// EnsureBalance seeds the paper balance row if it does not exist.
func (s *Store) EnsureBalance(ctx context.Context, initial float64) error {
	m := portfolioModel{ID: portfolioRowID, Balance: initial, UpdatedAtUnix: s.nowFn().Unix()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&m).Error
	if err != nil {
		return errs.Persistence("ensure balance", err)
	}
	return nil
}

// Balance returns the current paper balance.
func (s *Store) Balance(ctx context.Context) (float64, error) {
	var m portfolioModel
	err := s.db.WithContext(ctx).Where("id = ?", portfolioRowID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, errs.Persistence("read balance", fmt.Errorf("sim_portfolio row missing"))
	}
	if err != nil {
		return 0, errs.Persistence("read balance", err)
	}
	return m.Balance, nil
}

// SetBalance overwrites the paper balance.
func (s *Store) SetBalance(ctx context.Context, balance float64) error {
	err := s.db.WithContext(ctx).Model(&portfolioModel{}).
		Where("id = ?", portfolioRowID).
		Updates(map[string]any{
			"balance":    balance,
			"updated_at": s.nowFn().Unix(),
		}).Error
	if err != nil {
		return errs.Persistence("set balance", err)
	}
	return nil
}
