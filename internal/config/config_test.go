package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Roles.Operator = "ops-1"
	cfg.Roles.FeeRecipient = "treasury-1"
	return cfg
}

func TestValidate_DefaultsWithRoles(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults with roles should validate, got: %v", err)
	}
}

func TestValidate_RequiresRoles(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for missing roles")
	}
	if !strings.Contains(err.Error(), "operator") || !strings.Contains(err.Error(), "fee_recipient") {
		t.Errorf("error should name both missing roles, got: %v", err)
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.FeeRateBps = 10_001
	cfg.Engine.MinStake = decimal.Zero
	cfg.Engine.MinSubmissions = 1
	cfg.LogLevel = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"fee_rate_bps", "min_stake", "min_submissions", "log_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected combined error to mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_DurationOrdering(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.MinDuration = duration{2 * time.Hour}
	cfg.Engine.MaxDuration = duration{time.Hour}

	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "max_duration") {
		t.Errorf("expected max_duration ordering error, got: %v", err)
	}
}

func TestLoad_TOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	raw := `
log_level = "debug"

[engine]
fee_rate_bps = 500
min_stake = "0.25"
betting_cutoff = "30m"
emergency_delay = "96h"

[roles]
operator = "ops-1"
fee_recipient = "treasury-1"

[server]
addr = ":9090"
cors_origins = ["https://app.example.com"]

[redis]
addr = "localhost:6379"
cache_ttl = "45s"
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Engine.FeeRateBps != 500 {
		t.Errorf("expected fee_rate_bps 500, got %d", cfg.Engine.FeeRateBps)
	}
	if !cfg.Engine.MinStake.Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("expected min_stake 0.25, got %s", cfg.Engine.MinStake)
	}
	if cfg.Engine.BettingCutoff.Duration != 30*time.Minute {
		t.Errorf("expected betting_cutoff 30m, got %s", cfg.Engine.BettingCutoff)
	}
	if cfg.Engine.EmergencyDelay.Duration != 96*time.Hour {
		t.Errorf("expected emergency_delay 96h, got %s", cfg.Engine.EmergencyDelay)
	}
	// Untouched sections keep their defaults.
	if cfg.Engine.MinSubmissions != 2 {
		t.Errorf("expected default min_submissions 2, got %d", cfg.Engine.MinSubmissions)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected addr :9090, got %s", cfg.Server.Addr)
	}
	if cfg.Redis.CacheTTL.Duration != 45*time.Second {
		t.Errorf("expected cache_ttl 45s, got %s", cfg.Redis.CacheTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate, got: %v", err)
	}
}

func TestLoad_MissingPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load without file: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr, got %s", cfg.Server.Addr)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SAYSO_ENGINE_MIN_STAKE", "1.5")
	t.Setenv("SAYSO_ENGINE_BETTING_CUTOFF", "15m")
	t.Setenv("SAYSO_ROLES_OPERATOR", "ops-env")
	t.Setenv("SAYSO_DATABASE_URL", "postgres://env/db")
	t.Setenv("SAYSO_SERVER_CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !cfg.Engine.MinStake.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("expected min_stake 1.5 from env, got %s", cfg.Engine.MinStake)
	}
	if cfg.Engine.BettingCutoff.Duration != 15*time.Minute {
		t.Errorf("expected betting_cutoff 15m from env, got %s", cfg.Engine.BettingCutoff)
	}
	if cfg.Roles.Operator != "ops-env" {
		t.Errorf("expected operator from env, got %s", cfg.Roles.Operator)
	}
	if cfg.Database.DSN != "postgres://env/db" {
		t.Errorf("expected dsn from env alias, got %s", cfg.Database.DSN)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != want[0] || cfg.Server.CORSOrigins[1] != want[1] {
		t.Errorf("expected cors origins %v, got %v", want, cfg.Server.CORSOrigins)
	}
}
