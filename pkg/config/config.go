// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full runtime configuration. Every field maps to an
// environment variable via envconfig.
type Config struct {
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBName     string `envconfig:"DB_NAME" default:"convoy"`
	DBUser     string `envconfig:"DB_USER" default:"convoy"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBSSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`

	RedisURL      string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	CacheDisabled bool   `envconfig:"CACHE_DISABLED" default:"false"`

	JWTSecret   string        `envconfig:"JWT_SECRET"`
	TokenMaxAge time.Duration `envconfig:"TOKEN_MAX_AGE" default:"24h"`

	KafkaBrokers  []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	NotifyEnabled bool     `envconfig:"NOTIFY_ENABLED" default:"false"`
	PushTopic     string   `envconfig:"PUSH_TOPIC" default:"push-notifications"`

	ArchiveGroupOnComplete bool          `envconfig:"ARCHIVE_GROUP_ON_COMPLETE" default:"true"`
	LocationMinInterval    time.Duration `envconfig:"LOCATION_MIN_INTERVAL" default:"1500ms"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"10"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"30"`

	RideEventRetention  time.Duration `envconfig:"RIDE_EVENT_RETENTION" default:"720h"`
	RoutePointRetention time.Duration `envconfig:"ROUTE_POINT_RETENTION" default:"168h"`
	CleanupInterval     time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1h"`

	ShutdownWait time.Duration `envconfig:"SHUTDOWN_WAIT" default:"10s"`
}

// Load reads an optional .env file, then the process environment.
// envPath may be empty to skip the file.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			slog.Warn("Could not load .env file, continuing with existing environment",
				"path", envPath, "error", err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that would fail at runtime anyway.
func (c *Config) Validate() error {
	if c.JWTSecret == "" && c.Environment != "development" {
		return fmt.Errorf("JWT_SECRET is required outside development")
	}
	if c.LocationMinInterval < 0 {
		return fmt.Errorf("LOCATION_MIN_INTERVAL must not be negative")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	if c.NotifyEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when NOTIFY_ENABLED is set")
	}
	return nil
}

// IsProduction reports whether the service runs with production hardening.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
