// Package settings turns the operator-editable bot_config rows into a
// typed snapshot. The snapshot is rebuilt at the start of every judge
// evaluation so operator changes take effect without a restart; it is
// never cached across evaluations.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"zenith/internal/pkg/errs"
	"zenith/internal/scheduler"
	"zenith/internal/types"
)

// Reader is the slice of the store the loader needs.
type Reader interface {
	AllConfig(ctx context.Context) (map[string]string, error)
}

// DowntrendMode selects how hard new longs are blocked in adverse regimes.
type DowntrendMode string

const (
	DowntrendStrict    DowntrendMode = "STRICT"
	DowntrendModerate  DowntrendMode = "MODERATE"
	DowntrendSelective DowntrendMode = "SELECTIVE"
)

// Trailing holds the trailing-stop parameters. Percentages are fractions
// (0.03 = 3%).
type Trailing struct {
	Enabled       bool
	UseATR        bool
	StopPct       float64
	ATRMultiplier float64
	MinProfitPct  float64
}

// Settings is one typed view of the runtime configuration. Percentages
// are fractions unless the field name says otherwise.
type Settings struct {
	Mode    types.Mode
	Stopped bool // emergency stop flag, skips all evaluation and execution

	MaxOpenPositions int

	RSIVetoEnabled     bool
	RSIOverbought      float64
	TrendFilterEnabled bool
	MACDFilterEnabled  bool

	DowntrendProtection       bool
	DowntrendMode             DowntrendMode
	DowntrendAIBoost          float64 // added to the confidence threshold, percentage points
	DowntrendSizeReductionPct float64 // fraction

	ConfidenceThreshold float64 // 0..100
	PositionSizePct     float64 // fraction of balance
	MaxRiskPerTradePct  float64 // fraction of balance
	TradingCapital      float64 // cap on sized-against balance; 0 = uncapped

	Trailing Trailing

	Timeframe    string
	CycleMinutes int
}

// Config keys. Kept SCREAMING_SNAKE to stay compatible with rows written
// by the dashboard.
const (
	KeyTradingMode            = "TRADING_MODE"
	KeyBotStatus              = "BOT_STATUS"
	KeyMaxOpenPositions       = "MAX_OPEN_POSITIONS"
	KeyRSIVetoEnabled         = "ENABLE_RSI_VETO"
	KeyRSIOverbought          = "RSI_OVERBOUGHT"
	KeyTrendFilter            = "ENABLE_EMA_TREND"
	KeyMACDFilter             = "ENABLE_MACD_MOMENTUM"
	KeyDowntrendProtection    = "ENABLE_DOWNTREND_PROTECTION"
	KeyDowntrendMode          = "DOWNTREND_PROTECTION_MODE"
	KeyDowntrendAIBoost       = "DOWNTREND_AI_BOOST"
	KeyDowntrendSizeReduction = "DOWNTREND_SIZE_REDUCTION_PCT"
	KeyConfidenceThreshold    = "AI_CONF_THRESHOLD"
	KeyPositionSizePct        = "POSITION_SIZE_PCT"
	KeyMaxRiskPerTrade        = "MAX_RISK_PER_TRADE"
	KeyTradingCapital         = "TRADING_CAPITAL"
	KeyTrailingEnabled        = "TRAILING_STOP_ENABLED"
	KeyTrailingUseATR         = "TRAILING_STOP_USE_ATR"
	KeyTrailingStopPct        = "TRAILING_STOP_PCT"
	KeyTrailingATRMultiplier  = "TRAILING_STOP_ATR_MULTIPLIER"
	KeyMinProfitToTrail       = "MIN_PROFIT_TO_TRAIL_PCT"
	KeyTimeframe              = "TIMEFRAME"
	KeyCycleMinutes           = "TRADING_CYCLE_MINUTES"
	KeyHeartbeat              = "LAST_HEARTBEAT"
)

// BotStatusStopped is the BOT_STATUS value set by the dashboard's
// emergency stop.
const BotStatusStopped = "STOPPED"

// Defaults returns the seed rows written on first start. Existing rows
// are never overwritten, so operator edits survive restarts.
func Defaults() map[string]string {
	return map[string]string{
		KeyTradingMode:            string(types.ModePaper),
		KeyBotStatus:              "RUNNING",
		KeyMaxOpenPositions:       "3",
		KeyRSIVetoEnabled:         "true",
		KeyRSIOverbought:          "75",
		KeyTrendFilter:            "false",
		KeyMACDFilter:             "false",
		KeyDowntrendProtection:    "false",
		KeyDowntrendMode:          string(DowntrendModerate),
		KeyDowntrendAIBoost:       "20",
		KeyDowntrendSizeReduction: "30",
		KeyConfidenceThreshold:    "60",
		KeyPositionSizePct:        "5",
		KeyMaxRiskPerTrade:        "10",
		KeyTrailingEnabled:        "true",
		KeyTrailingUseATR:         "false",
		KeyTrailingStopPct:        "3",
		KeyTrailingATRMultiplier:  "2",
		KeyMinProfitToTrail:       "1",
		KeyTimeframe:              "1h",
		KeyCycleMinutes:           "2",
	}
}

// Load reads all config rows and parses them into a Settings snapshot.
// Missing keys fall back to defaults; malformed values are a
// ConfigurationError, never silently coerced.
func Load(ctx context.Context, r Reader) (Settings, error) {
	rows, err := r.AllConfig(ctx)
	if err != nil {
		return Settings{}, err
	}
	return Parse(rows)
}

// Parse builds a Settings snapshot from raw key/value rows.
func Parse(rows map[string]string) (Settings, error) {
	p := parser{rows: rows}

	s := Settings{
		Timeframe:    p.str(KeyTimeframe, "1h"),
		CycleMinutes: p.intVal(KeyCycleMinutes, 2),

		MaxOpenPositions: p.intVal(KeyMaxOpenPositions, 3),

		RSIVetoEnabled:     p.boolVal(KeyRSIVetoEnabled, true),
		RSIOverbought:      p.floatVal(KeyRSIOverbought, 75),
		TrendFilterEnabled: p.boolVal(KeyTrendFilter, false),
		MACDFilterEnabled:  p.boolVal(KeyMACDFilter, false),

		DowntrendProtection:       p.boolVal(KeyDowntrendProtection, false),
		DowntrendAIBoost:          p.floatVal(KeyDowntrendAIBoost, 20),
		DowntrendSizeReductionPct: p.pct(KeyDowntrendSizeReduction, 30),

		ConfidenceThreshold: p.floatVal(KeyConfidenceThreshold, 60),
		PositionSizePct:     p.pct(KeyPositionSizePct, 5),
		MaxRiskPerTradePct:  p.pct(KeyMaxRiskPerTrade, 10),
		TradingCapital:      p.floatVal(KeyTradingCapital, 0),

		Trailing: Trailing{
			Enabled:       p.boolVal(KeyTrailingEnabled, true),
			UseATR:        p.boolVal(KeyTrailingUseATR, false),
			StopPct:       p.pct(KeyTrailingStopPct, 3),
			ATRMultiplier: p.floatVal(KeyTrailingATRMultiplier, 2),
			MinProfitPct:  p.pct(KeyMinProfitToTrail, 1),
		},
	}

	mode := strings.ToUpper(p.str(KeyTradingMode, string(types.ModePaper)))
	switch types.Mode(mode) {
	case types.ModePaper, types.ModeLive:
		s.Mode = types.Mode(mode)
	default:
		return Settings{}, errs.Config(KeyTradingMode, mode, "must be PAPER or LIVE")
	}

	s.Stopped = strings.EqualFold(p.str(KeyBotStatus, ""), BotStatusStopped)

	dm := DowntrendMode(strings.ToUpper(p.str(KeyDowntrendMode, string(DowntrendModerate))))
	switch dm {
	case DowntrendStrict, DowntrendModerate, DowntrendSelective:
		s.DowntrendMode = dm
	default:
		return Settings{}, errs.Config(KeyDowntrendMode, string(dm), "must be STRICT, MODERATE or SELECTIVE")
	}

	if p.err != nil {
		return Settings{}, p.err
	}
	if s.MaxOpenPositions <= 0 {
		return Settings{}, errs.Config(KeyMaxOpenPositions, fmt.Sprint(s.MaxOpenPositions), "must be positive")
	}
	if s.PositionSizePct <= 0 || s.PositionSizePct > 1 {
		return Settings{}, errs.Config(KeyPositionSizePct, fmt.Sprint(s.PositionSizePct*100), "must be in (0, 100]")
	}
	if s.MaxRiskPerTradePct <= 0 || s.MaxRiskPerTradePct > 1 {
		return Settings{}, errs.Config(KeyMaxRiskPerTrade, fmt.Sprint(s.MaxRiskPerTradePct*100), "must be in (0, 100]")
	}
	if s.Trailing.StopPct <= 0 || s.Trailing.StopPct >= 1 {
		return Settings{}, errs.Config(KeyTrailingStopPct, fmt.Sprint(s.Trailing.StopPct*100), "must be in (0, 100)")
	}
	if s.Trailing.ATRMultiplier <= 0 {
		return Settings{}, errs.Config(KeyTrailingATRMultiplier, fmt.Sprint(s.Trailing.ATRMultiplier), "must be positive")
	}
	if _, ok := scheduler.ParseIntervalDuration(s.Timeframe); !ok {
		return Settings{}, errs.Config(KeyTimeframe, s.Timeframe, "must be a kline interval like 15m, 1h or 1d")
	}
	return s, nil
}

// parser collects the first parse error instead of failing key by key, so
// a Load either yields a complete snapshot or one ConfigurationError.
type parser struct {
	rows map[string]string
	err  error
}

// raw strips whitespace and the literal quotes some dashboards write
// around JSON-ish values.
func (p *parser) raw(key string) (string, bool) {
	v, ok := p.rows[key]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(strings.ReplaceAll(v, `"`, ""))
	if v == "" {
		return "", false
	}
	return v, true
}

func (p *parser) str(key, def string) string {
	if v, ok := p.raw(key); ok {
		return v
	}
	return def
}

func (p *parser) boolVal(key string, def bool) bool {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		p.fail(key, v, "must be a boolean")
		return def
	}
	return b
}

func (p *parser) floatVal(key string, def float64) float64 {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, "must be a number")
		return def
	}
	return f
}

// pct reads a percentage stored as "5" meaning 5% and returns 0.05.
func (p *parser) pct(key string, def float64) float64 {
	return p.floatVal(key, def) / 100
}

func (p *parser) intVal(key string, def int) int {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, "must be an integer")
		return def
	}
	return n
}

func (p *parser) fail(key, value, reason string) {
	if p.err == nil {
		p.err = errs.Config(key, value, reason)
	}
}
