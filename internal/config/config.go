// Package config loads the static process configuration from YAML.
// Anything an operator may change at runtime lives in the bot_config
// table instead; this file covers only what needs a restart anyway
// (credentials, endpoints, the scan list, storage paths).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"zenith/internal/logger"
	"zenith/internal/pkg/symbol"
)

// Config is the full static configuration tree.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	Database DatabaseConfig `mapstructure:"database"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Server   ServerConfig   `mapstructure:"server"`
	Watchdog WatchdogConfig `mapstructure:"watchdog"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type ExchangeConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	APISecret   string        `mapstructure:"api_secret"`
	BaseURL     string        `mapstructure:"base_url"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	// Rate limiter and breaker settings for the market boundary.
	MaxCallsPerMinute int           `mapstructure:"max_calls_per_minute"`
	BreakerThreshold  int           `mapstructure:"breaker_threshold"`
	BreakerTimeout    time.Duration `mapstructure:"breaker_timeout"`
}

type OracleConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`

	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout"`
}

type TradingConfig struct {
	Symbols        []string `mapstructure:"symbols"`
	QuoteAsset     string   `mapstructure:"quote_asset"`
	InitialBalance float64  `mapstructure:"initial_balance"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

type WatchdogConfig struct {
	MaxHeartbeatAge time.Duration `mapstructure:"max_heartbeat_age"`
}

// Load reads and validates the YAML file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.StringToTimeDurationHookFunc()
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch re-reads the file on change and applies the log level without a
// restart. Everything else stays fixed for the process lifetime.
func Watch(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(_ fsnotify.Event) {
		level := strings.TrimSpace(v.GetString("log_level"))
		if level != "" {
			logger.SetLevel(level)
			logger.Infof("config: log level set to %s", level)
		}
	})
	v.WatchConfig()
	return nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/zenith.db"
	}
	if c.Exchange.HTTPTimeout <= 0 {
		c.Exchange.HTTPTimeout = 15 * time.Second
	}
	if c.Exchange.MaxCallsPerMinute <= 0 {
		c.Exchange.MaxCallsPerMinute = 60
	}
	if c.Exchange.BreakerThreshold <= 0 {
		c.Exchange.BreakerThreshold = 5
	}
	if c.Exchange.BreakerTimeout <= 0 {
		c.Exchange.BreakerTimeout = 30 * time.Second
	}
	if c.Oracle.Timeout <= 0 {
		c.Oracle.Timeout = 60 * time.Second
	}
	if c.Oracle.BreakerThreshold <= 0 {
		c.Oracle.BreakerThreshold = 3
	}
	if c.Oracle.BreakerTimeout <= 0 {
		c.Oracle.BreakerTimeout = 2 * time.Minute
	}
	if c.Trading.QuoteAsset == "" {
		c.Trading.QuoteAsset = "USDT"
	}
	if c.Trading.InitialBalance <= 0 {
		c.Trading.InitialBalance = 1000
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Watchdog.MaxHeartbeatAge <= 0 {
		c.Watchdog.MaxHeartbeatAge = 5 * time.Minute
	}
}

func (c *Config) validate() error {
	c.Trading.Symbols = symbol.DedupeList(c.Trading.Symbols)
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("config: trading.symbols must list at least one instrument")
	}
	for _, s := range c.Trading.Symbols {
		if !symbol.IsValid(s) {
			return fmt.Errorf("config: trading.symbols entry %q is not a recognized pair", s)
		}
	}
	if c.Oracle.Model == "" {
		return fmt.Errorf("config: oracle.model is required")
	}
	return nil
}
