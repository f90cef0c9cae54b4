package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Market    MarketConfig    `mapstructure:"market"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type ProcessorConfig struct {
	NumWorkers int `mapstructure:"num_workers"`
}

type GatewayConfig struct {
	Port      string `mapstructure:"port"`
	RateLimit int    `mapstructure:"rate_limit"` // websocket upgrades per IP per minute, 0 disables
}

type FeedConfig struct {
	Mode         string        `mapstructure:"mode"` // "sim" or "real"
	SimInterval  time.Duration `mapstructure:"sim_interval"`
	LiveInterval time.Duration `mapstructure:"live_interval"`
	Assets       []string      `mapstructure:"assets"` // "id:SYMBOL"
	MetricsPort  string        `mapstructure:"metrics_port"`
	Hydrate      bool          `mapstructure:"hydrate"` // hydrate simulation from the market once
}

type MarketConfig struct {
	PrimaryURL    string        `mapstructure:"primary_url"`
	FallbackURL   string        `mapstructure:"fallback_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Quote         string        `mapstructure:"quote"`
	KlineInterval string        `mapstructure:"kline_interval"`
	KlineLimit    int           `mapstructure:"kline_limit"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// .env is optional; real env vars always win
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	setDefaults(v)

	// "feed.sim_interval" -> "FEED_SIM_INTERVAL"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Viper only maps flat env vars onto nested keys it has been told about
	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "logger.level", "logger.development")
	bindEnv(v, "redis.addr", "redis.password", "redis.db")
	bindEnv(v, "kafka.brokers", "kafka.topic", "kafka.group_id")
	bindEnv(v, "processor.num_workers")
	bindEnv(v, "gateway.port", "gateway.rate_limit")
	bindEnv(v, "feed.mode", "feed.sim_interval", "feed.live_interval", "feed.assets", "feed.metrics_port", "feed.hydrate")
	bindEnv(v, "market.primary_url", "market.fallback_url", "market.timeout", "market.quote",
		"market.kline_interval", "market.kline_limit")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.development", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "crypto_ticks")
	v.SetDefault("kafka.group_id", "crypto-processor-group")

	v.SetDefault("processor.num_workers", 4)

	v.SetDefault("gateway.port", ":8080")
	v.SetDefault("gateway.rate_limit", 60)

	v.SetDefault("feed.mode", models.ModeSimulation)
	v.SetDefault("feed.sim_interval", 200*time.Millisecond)
	v.SetDefault("feed.live_interval", 5*time.Second)
	v.SetDefault("feed.assets", []string{
		"bitcoin:BTC", "ethereum:ETH", "solana:SOL", "cardano:ADA", "polkadot:DOT",
	})
	v.SetDefault("feed.metrics_port", ":9100")
	v.SetDefault("feed.hydrate", true)

	v.SetDefault("market.primary_url", "http://localhost:4200/api/v3")
	v.SetDefault("market.fallback_url", "https://api.binance.com/api/v3")
	v.SetDefault("market.timeout", 4*time.Second)
	v.SetDefault("market.quote", "USDT")
	v.SetDefault("market.kline_interval", "1h")
	v.SetDefault("market.kline_limit", 50)
}

// Validate checks the fields the binaries cannot run without.
func (c *Config) Validate() error {
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers cannot be empty")
	}
	if c.Feed.Mode != models.ModeSimulation && c.Feed.Mode != models.ModeLive {
		return fmt.Errorf("unknown feed mode %q", c.Feed.Mode)
	}
	if c.Feed.SimInterval <= 0 || c.Feed.LiveInterval <= 0 {
		return fmt.Errorf("feed intervals must be positive")
	}
	if _, err := c.Assets(); err != nil {
		return err
	}
	return nil
}

// Assets parses feed.assets into zero-priced seed assets, in configured order.
func (c *Config) Assets() ([]models.Asset, error) {
	if len(c.Feed.Assets) == 0 {
		return nil, fmt.Errorf("feed assets cannot be empty")
	}

	seen := make(map[string]bool, len(c.Feed.Assets))
	assets := make([]models.Asset, 0, len(c.Feed.Assets))
	for _, entry := range c.Feed.Assets {
		id, symbol, ok := strings.Cut(strings.TrimSpace(entry), ":")
		id, symbol = strings.ToLower(strings.TrimSpace(id)), strings.ToUpper(strings.TrimSpace(symbol))
		if !ok || id == "" || symbol == "" {
			return nil, fmt.Errorf("invalid feed asset %q, want id:SYMBOL", entry)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate feed asset %q", id)
		}
		seen[id] = true
		assets = append(assets, models.Asset{ID: id, Symbol: symbol})
	}
	return assets, nil
}

// AssetIDs returns the set of configured asset ids.
func (c *Config) AssetIDs() map[string]bool {
	ids := make(map[string]bool)
	assets, err := c.Assets()
	if err != nil {
		return ids
	}
	for _, a := range assets {
		ids[a.ID] = true
	}
	return ids
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
