// Package config defines the top-level configuration for the market engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SAYSO_* environment variables.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Roles    RolesConfig    `toml:"roles"`
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	LogLevel string         `toml:"log_level"`
}

// EngineConfig holds the market lifecycle parameters. Money values are
// decimal strings; durations use Go syntax ("1h", "168h").
type EngineConfig struct {
	FeeRateBps     int64           `toml:"fee_rate_bps"`
	MinStake       decimal.Decimal `toml:"min_stake"`
	BettingCutoff  duration        `toml:"betting_cutoff"`
	MinSubmissions int             `toml:"min_submissions"`
	MaxTextLength  int             `toml:"max_text_length"`
	EmergencyDelay duration        `toml:"emergency_delay"`
	MinDuration    duration        `toml:"min_duration"`
	MaxDuration    duration        `toml:"max_duration"`
}

// RolesConfig names the privileged accounts. Both must be set: without an
// operator no market can ever be resolved or emergency-refunded, and without
// a fee recipient accrued fees are unclaimable.
type RolesConfig struct {
	Operator     string `toml:"operator"`
	FeeRecipient string `toml:"fee_recipient"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Addr               string   `toml:"addr"`
	APIKey             string   `toml:"api_key"`
	CORSOrigins        []string `toml:"cors_origins"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"`
	ShutdownTimeout    duration `toml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters. An empty DSN selects
// the in-memory journal, which loses all state on restart.
type DatabaseConfig struct {
	DSN          string `toml:"dsn"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// RedisConfig holds Redis connection parameters. An empty Addr disables the
// view cache and the rate limiter backend.
type RedisConfig struct {
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	CacheTTL duration `toml:"cache_ttl"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "168h").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the engine's standard parameters.
// Roles are intentionally empty and must be supplied by the deployment;
// Validate refuses a config without them.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			FeeRateBps:     700,
			MinStake:       decimal.RequireFromString("0.01"),
			BettingCutoff:  duration{time.Hour},
			MinSubmissions: 2,
			MaxTextLength:  280,
			EmergencyDelay: duration{7 * 24 * time.Hour},
			MinDuration:    duration{time.Hour},
			MaxDuration:    duration{30 * 24 * time.Hour},
		},
		Server: ServerConfig{
			Addr:               ":8080",
			CORSOrigins:        []string{"*"},
			RateLimitPerMinute: 120,
			ShutdownTimeout:    duration{10 * time.Second},
		},
		Database: DatabaseConfig{
			PoolMaxConns: 10,
			PoolMinConns: 2,
		},
		Redis: RedisConfig{
			CacheTTL: duration{30 * time.Second},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if c.Engine.FeeRateBps < 0 || c.Engine.FeeRateBps > 10_000 {
		errs = append(errs, fmt.Sprintf("engine: fee_rate_bps must be 0-10000, got %d", c.Engine.FeeRateBps))
	}
	if !c.Engine.MinStake.IsPositive() {
		errs = append(errs, fmt.Sprintf("engine: min_stake must be > 0, got %s", c.Engine.MinStake))
	}
	if c.Engine.BettingCutoff.Duration < 0 {
		errs = append(errs, "engine: betting_cutoff must not be negative")
	}
	if c.Engine.MinSubmissions < 2 {
		errs = append(errs, fmt.Sprintf("engine: min_submissions must be >= 2 for a meaningful contest, got %d", c.Engine.MinSubmissions))
	}
	if c.Engine.MaxTextLength < 1 {
		errs = append(errs, fmt.Sprintf("engine: max_text_length must be >= 1, got %d", c.Engine.MaxTextLength))
	}
	if c.Engine.EmergencyDelay.Duration <= 0 {
		errs = append(errs, "engine: emergency_delay must be positive")
	}
	if c.Engine.MinDuration.Duration <= 0 {
		errs = append(errs, "engine: min_duration must be positive")
	}
	if c.Engine.MaxDuration.Duration < c.Engine.MinDuration.Duration {
		errs = append(errs, "engine: max_duration must not be below min_duration")
	}

	// Roles — funds get trapped without them, so refuse to start.
	if c.Roles.Operator == "" {
		errs = append(errs, "roles: operator must be set (markets cannot be resolved without one)")
	}
	if c.Roles.FeeRecipient == "" {
		errs = append(errs, "roles: fee_recipient must be set (accrued fees would be unclaimable)")
	}

	// Server
	if c.Server.Addr == "" {
		errs = append(errs, "server: addr must not be empty")
	}
	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, "server: rate_limit_per_minute must not be negative (0 disables limiting)")
	}
	if c.Server.ShutdownTimeout.Duration <= 0 {
		errs = append(errs, "server: shutdown_timeout must be positive")
	}

	// Database
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.CacheTTL.Duration < 0 {
		errs = append(errs, "redis: cache_ttl must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
