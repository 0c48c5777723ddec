package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"stockcast/internal/shared/logging"
)

type ServerConfig struct {
	Addr string
}

type PostgresConfig struct {
	// DSN is optional: when empty the service runs on the in-memory store.
	DSN string
}

type KafkaConfig struct {
	// Brokers is optional: when empty notifications stay on the in-process
	// bus and fan out within this instance only.
	Brokers []string
	GroupID string
}

type SecurityConfig struct {
	JWTSecret string
}

type StreamConfig struct {
	PingInterval time.Duration
	IdleTimeout  time.Duration
}

type CatalogConfig struct {
	LowStockThreshold int
}

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Security SecurityConfig
	Stream   StreamConfig
	Catalog  CatalogConfig
	Logging  logging.Config
}

// Load reads the configuration from the environment, applying defaults for
// anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Server:   ServerConfig{Addr: getString("ADDR", ":8080")},
		Postgres: PostgresConfig{DSN: strings.TrimSpace(os.Getenv("POSTGRES_DSN"))},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			GroupID: getString("KAFKA_GROUP_ID", "stockcast"),
		},
		Security: SecurityConfig{JWTSecret: strings.TrimSpace(os.Getenv("JWT_SECRET"))},
		Logging: logging.Config{
			Level:  getString("LOG_LEVEL", "info"),
			Format: getString("LOG_FORMAT", "text"),
		},
	}

	var err error
	if cfg.Stream.PingInterval, err = getDuration("STREAM_PING_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.Stream.IdleTimeout, err = getDuration("STREAM_IDLE_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.Catalog.LowStockThreshold, err = getInt("LOW_STOCK_THRESHOLD", 5); err != nil {
		return nil, err
	}

	if cfg.Stream.PingInterval >= cfg.Stream.IdleTimeout {
		return nil, fmt.Errorf("STREAM_PING_INTERVAL (%s) must be below STREAM_IDLE_TIMEOUT (%s)",
			cfg.Stream.PingInterval, cfg.Stream.IdleTimeout)
	}
	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return value, nil
}

func getInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return value, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
