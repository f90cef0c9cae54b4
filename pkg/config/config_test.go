package config_test

import (
	"testing"
	"time"

	"github.com/shubham-shewale/crypto-monitor/pkg/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Feed.Mode != "sim" {
		t.Errorf("Expected default mode sim, got %s", cfg.Feed.Mode)
	}
	if cfg.Feed.SimInterval != 200*time.Millisecond {
		t.Errorf("Expected 200ms sim interval, got %v", cfg.Feed.SimInterval)
	}
	if cfg.Feed.LiveInterval != 5*time.Second {
		t.Errorf("Expected 5s live interval, got %v", cfg.Feed.LiveInterval)
	}
	if cfg.Kafka.Topic != "crypto_ticks" {
		t.Errorf("Expected topic crypto_ticks, got %s", cfg.Kafka.Topic)
	}

	assets, err := cfg.Assets()
	if err != nil {
		t.Fatalf("Assets failed: %v", err)
	}
	if len(assets) != 5 || assets[0].ID != "bitcoin" || assets[0].Symbol != "BTC" {
		t.Errorf("Unexpected default assets: %+v", assets)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("FEED_MODE", "real")
	t.Setenv("FEED_LIVE_INTERVAL", "10s")
	t.Setenv("PROCESSOR_NUM_WORKERS", "8")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Feed.Mode != "real" {
		t.Errorf("Expected mode real, got %s", cfg.Feed.Mode)
	}
	if cfg.Feed.LiveInterval != 10*time.Second {
		t.Errorf("Expected 10s, got %v", cfg.Feed.LiveInterval)
	}
	if cfg.Processor.NumWorkers != 8 {
		t.Errorf("Expected 8 workers, got %d", cfg.Processor.NumWorkers)
	}
}

func TestLoadConfig_InvalidMode(t *testing.T) {
	t.Setenv("FEED_MODE", "paper")

	if _, err := config.LoadConfig(); err == nil {
		t.Error("Expected error for unknown feed mode")
	}
}

func TestAssets_Parsing(t *testing.T) {
	cfg := &config.Config{}

	cfg.Feed.Assets = []string{" Bitcoin : btc ", "ethereum:ETH"}
	assets, err := cfg.Assets()
	if err != nil {
		t.Fatalf("Assets failed: %v", err)
	}
	if assets[0].ID != "bitcoin" || assets[0].Symbol != "BTC" {
		t.Errorf("Expected normalized bitcoin/BTC, got %s/%s", assets[0].ID, assets[0].Symbol)
	}

	cfg.Feed.Assets = []string{"bitcoin"}
	if _, err := cfg.Assets(); err == nil {
		t.Error("Expected error for entry without symbol")
	}

	cfg.Feed.Assets = []string{"bitcoin:BTC", "bitcoin:XBT"}
	if _, err := cfg.Assets(); err == nil {
		t.Error("Expected error for duplicate id")
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := config.NewLogger(config.LoggerConfig{Level: "debug", Development: true}); err != nil {
		t.Errorf("Expected valid logger, got %v", err)
	}
	if _, err := config.NewLogger(config.LoggerConfig{Level: "loud"}); err == nil {
		t.Error("Expected error for invalid level")
	}
}
