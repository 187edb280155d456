package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	if cfg.Screener.VolumeThresholdUSDT != 50_000_000 {
		t.Fatalf("expected default volume threshold 50000000, got %f", cfg.Screener.VolumeThresholdUSDT)
	}
	if cfg.Screener.DefaultKlineInterval != "15m" {
		t.Fatalf("expected default interval 15m, got %q", cfg.Screener.DefaultKlineInterval)
	}
	if cfg.Screener.KlineLimit != 100 {
		t.Fatalf("expected default kline limit 100, got %d", cfg.Screener.KlineLimit)
	}
	if cfg.Screener.SignalLookbackPeriods != 3 {
		t.Fatalf("expected default lookback 3, got %d", cfg.Screener.SignalLookbackPeriods)
	}
	if cfg.Screener.RefreshInterval != 5*time.Minute {
		t.Fatalf("expected default refresh interval 5m, got %v", cfg.Screener.RefreshInterval)
	}
	if cfg.Screener.FailureBackoff != time.Minute {
		t.Fatalf("expected default failure backoff 1m, got %v", cfg.Screener.FailureBackoff)
	}
	if len(cfg.Screener.EMAPeriods) != 4 || cfg.Screener.EMAPeriods[0] != 20 || cfg.Screener.EMAPeriods[3] != 250 {
		t.Fatalf("unexpected default ema periods: %v", cfg.Screener.EMAPeriods)
	}
}

func TestValidateRejectsUnsortedEMAPeriods(t *testing.T) {
	cfg := Default()
	cfg.Screener.EMAPeriods = []int{60, 20}
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for unsorted ema periods")
	}
}

func TestValidateRejectsZeroLookback(t *testing.T) {
	cfg := Default()
	cfg.Screener.SignalLookbackPeriods = 0
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for zero lookback")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
log:
  level: debug
screener:
  volume_threshold_usdt: 1000
  signal_lookback_periods: 4
  ema_periods: [10, 30]
  refresh_interval: 1m
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected level debug, got %q", cfg.Log.Level)
	}
	if cfg.Screener.VolumeThresholdUSDT != 1000 {
		t.Fatalf("expected volume threshold 1000, got %f", cfg.Screener.VolumeThresholdUSDT)
	}
	if cfg.Screener.SignalLookbackPeriods != 4 {
		t.Fatalf("expected lookback 4, got %d", cfg.Screener.SignalLookbackPeriods)
	}
	if cfg.Screener.RefreshInterval != time.Minute {
		t.Fatalf("expected refresh interval 1m, got %v", cfg.Screener.RefreshInterval)
	}
	// Untouched sections still pick up defaults.
	if cfg.REST.BaseURL != "https://fapi.binance.com" {
		t.Fatalf("expected default base url, got %q", cfg.REST.BaseURL)
	}
}

func TestEnvOverlay(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	cfg := Default()
	if cfg.Telegram.Token != "tok" || cfg.Telegram.ChatID != "42" {
		t.Fatalf("expected telegram secrets from env, got %q/%q", cfg.Telegram.Token, cfg.Telegram.ChatID)
	}
}
