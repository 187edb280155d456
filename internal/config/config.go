package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	REST      RESTConfig      `yaml:"rest"`
	Screener  ScreenerConfig  `yaml:"screener"`
	API       APIConfig       `yaml:"api"`
	State     StateConfig     `yaml:"state"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Timescale TimescaleConfig `yaml:"timescale"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type RESTConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type ScreenerConfig struct {
	VolumeThresholdUSDT      float64       `yaml:"volume_threshold_usdt"`
	PriceChangeThresholdPct  float64       `yaml:"price_change_threshold_percent"`
	DefaultKlineInterval     string        `yaml:"default_kline_interval"`
	KlineLimit               int           `yaml:"kline_limit"`
	SignalLookbackPeriods    int           `yaml:"signal_lookback_periods"`
	SignalChangeThresholdPct float64       `yaml:"signal_cumulative_change_threshold_percent"`
	MinSignalConfidence      float64       `yaml:"min_signal_confidence"`
	EMAPeriods               []int         `yaml:"ema_periods"`
	RefreshInterval          time.Duration `yaml:"refresh_interval"`
	FailureBackoff           time.Duration `yaml:"failure_backoff"`
	FetchDelay               time.Duration `yaml:"fetch_delay"`
	CacheTTL                 time.Duration `yaml:"cache_ttl"`
}

type APIConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, validate(&cfg)
}

// Default returns the built-in configuration without reading a file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.REST.BaseURL == "" {
		cfg.REST.BaseURL = "https://fapi.binance.com"
	}
	if cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = 10 * time.Second
	}
	if cfg.Screener.VolumeThresholdUSDT == 0 {
		cfg.Screener.VolumeThresholdUSDT = 50_000_000
	}
	if cfg.Screener.PriceChangeThresholdPct == 0 {
		cfg.Screener.PriceChangeThresholdPct = 1.0
	}
	if cfg.Screener.DefaultKlineInterval == "" {
		cfg.Screener.DefaultKlineInterval = "15m"
	}
	if cfg.Screener.KlineLimit == 0 {
		cfg.Screener.KlineLimit = 100
	}
	if cfg.Screener.SignalLookbackPeriods == 0 {
		cfg.Screener.SignalLookbackPeriods = 3
	}
	if cfg.Screener.SignalChangeThresholdPct == 0 {
		cfg.Screener.SignalChangeThresholdPct = 1.0
	}
	if cfg.Screener.MinSignalConfidence == 0 {
		cfg.Screener.MinSignalConfidence = 0.6
	}
	if len(cfg.Screener.EMAPeriods) == 0 {
		cfg.Screener.EMAPeriods = []int{20, 60, 120, 250}
	}
	if cfg.Screener.RefreshInterval == 0 {
		cfg.Screener.RefreshInterval = 5 * time.Minute
	}
	if cfg.Screener.FailureBackoff == 0 {
		cfg.Screener.FailureBackoff = time.Minute
	}
	if cfg.Screener.FetchDelay == 0 {
		cfg.Screener.FetchDelay = 100 * time.Millisecond
	}
	if cfg.Screener.CacheTTL == 0 {
		cfg.Screener.CacheTTL = 5 * time.Minute
	}
	if cfg.API.ListenAddr == "" {
		cfg.API.ListenAddr = ":6000"
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/gap-screener.db"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	if cfg.Timescale.QueueSize == 0 {
		cfg.Timescale.QueueSize = 256
	}
}

// applyEnv overlays secrets that never belong in the config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("TIMESCALE_DSN"); v != "" {
		cfg.Timescale.DSN = v
	}
}

func validate(cfg *Config) error {
	if cfg.Screener.VolumeThresholdUSDT < 0 {
		return errors.New("screener.volume_threshold_usdt must be >= 0")
	}
	if cfg.Screener.PriceChangeThresholdPct < 0 {
		return errors.New("screener.price_change_threshold_percent must be >= 0")
	}
	if cfg.Screener.SignalLookbackPeriods < 1 {
		return errors.New("screener.signal_lookback_periods must be >= 1")
	}
	if cfg.Screener.SignalChangeThresholdPct <= 0 {
		return errors.New("screener.signal_cumulative_change_threshold_percent must be > 0")
	}
	if cfg.Screener.MinSignalConfidence < 0 || cfg.Screener.MinSignalConfidence > 1 {
		return errors.New("screener.min_signal_confidence must be within [0, 1]")
	}
	if cfg.Screener.RefreshInterval <= 0 {
		return errors.New("screener.refresh_interval must be > 0")
	}
	prev := 0
	for _, period := range cfg.Screener.EMAPeriods {
		if period <= prev {
			return fmt.Errorf("screener.ema_periods must be strictly increasing, got %v", cfg.Screener.EMAPeriods)
		}
		prev = period
	}
	return nil
}
