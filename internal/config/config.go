package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	PostgresDSN string `env:"POSTGRES_DSN" envDefault:"host=localhost user=postgres password=postgres dbname=crowdfund sslmode=disable"`
	// Empty RedisAddr runs without a cache or idempotency locks.
	RedisAddr string `env:"REDIS_ADDR"`
	// Empty KafkaBrokers disables events and the reconcile consumer.
	KafkaBrokers        []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaDonationsTopic string        `env:"KAFKA_DONATIONS_TOPIC" envDefault:"donations"`
	KafkaReconcileTopic string        `env:"KAFKA_RECONCILE_TOPIC" envDefault:"campaign-reconcile"`
	KafkaGroupID        string        `env:"KAFKA_GROUP_ID" envDefault:"crowdfund-service-group"`
	JWTSecret           string        `env:"JWT_SECRET" envDefault:"supersecret"`
	OTLPEndpoint        string        `env:"OTLP_ENDPOINT"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	CacheTTL            time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	IdempotencyTTL      time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"30s"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using environment and defaults", "error", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("config loaded",
		"http_addr", cfg.HTTPAddr,
		"store_driver", cfg.StoreDriver,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"otlp_endpoint", cfg.OTLPEndpoint,
	)
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.CacheTTL <= 0 || c.IdempotencyTTL <= 0 {
		return fmt.Errorf("cache and idempotency TTLs must be positive")
	}
	return nil
}
