// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the service.
type Config struct {
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	AppAddr         string        `envconfig:"APP_ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"APP_READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"APP_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"APP_SHUTDOWN_TIMEOUT" default:"10s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// DatabaseURL selects the postgres store; empty keeps everything in memory.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// RedisAddr switches tree locking from in-process to redis.
	RedisAddr   string        `envconfig:"REDIS_ADDR"`
	LockTTL     time.Duration `envconfig:"LOCK_TTL" default:"10s"`
	LockRetry   int           `envconfig:"LOCK_RETRY" default:"50"`
	LockBackoff time.Duration `envconfig:"LOCK_BACKOFF" default:"100ms"`

	DevSeed  bool   `envconfig:"DEV_SEED" default:"false"`
	Currency string `envconfig:"CURRENCY" default:"USD"`

	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"600"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.Currency = strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if len(cfg.Currency) != 3 {
		return nil, fmt.Errorf("CURRENCY must be a 3-letter code, got %q", cfg.Currency)
	}
	if cfg.RateLimitPerMinute < 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be >= 0")
	}
	return &cfg, nil
}

// IsProduction returns true when the service runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// NewLogger builds the process logger: JSON unless LOG_FORMAT=text.
func NewLogger(cfg *Config) *slog.Logger {
	level := slog.LevelInfo
	format := "json"
	if cfg != nil {
		level = parseLogLevel(cfg.LogLevel)
		format = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	}
	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// parseLogLevel maps env values to slog levels.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
