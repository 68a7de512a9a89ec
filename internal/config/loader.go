package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Load reads a TOML configuration file at path (skipped when path is empty),
// merges it on top of the built-in defaults, applies SAYSO_* environment
// variable overrides, and returns the final Config. The returned Config has
// NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SAYSO_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setInt64(&cfg.Engine.FeeRateBps, "SAYSO_ENGINE_FEE_RATE_BPS")
	setDecimal(&cfg.Engine.MinStake, "SAYSO_ENGINE_MIN_STAKE")
	setDuration(&cfg.Engine.BettingCutoff, "SAYSO_ENGINE_BETTING_CUTOFF")
	setInt(&cfg.Engine.MinSubmissions, "SAYSO_ENGINE_MIN_SUBMISSIONS")
	setInt(&cfg.Engine.MaxTextLength, "SAYSO_ENGINE_MAX_TEXT_LENGTH")
	setDuration(&cfg.Engine.EmergencyDelay, "SAYSO_ENGINE_EMERGENCY_DELAY")
	setDuration(&cfg.Engine.MinDuration, "SAYSO_ENGINE_MIN_DURATION")
	setDuration(&cfg.Engine.MaxDuration, "SAYSO_ENGINE_MAX_DURATION")

	// ── Roles ──
	setStr(&cfg.Roles.Operator, "SAYSO_ROLES_OPERATOR")
	setStr(&cfg.Roles.FeeRecipient, "SAYSO_ROLES_FEE_RECIPIENT")

	// ── Server ──
	setStr(&cfg.Server.Addr, "SAYSO_SERVER_ADDR")
	setStr(&cfg.Server.APIKey, "SAYSO_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "SAYSO_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimitPerMinute, "SAYSO_SERVER_RATE_LIMIT_PER_MINUTE")
	setDuration(&cfg.Server.ShutdownTimeout, "SAYSO_SERVER_SHUTDOWN_TIMEOUT")

	// ── Database ──
	setStr(&cfg.Database.DSN, "SAYSO_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "SAYSO_DATABASE_URL") // compatibility alias
	setInt(&cfg.Database.PoolMaxConns, "SAYSO_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "SAYSO_DATABASE_POOL_MIN_CONNS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SAYSO_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SAYSO_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SAYSO_REDIS_DB")
	setDuration(&cfg.Redis.CacheTTL, "SAYSO_REDIS_CACHE_TTL")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "SAYSO_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDecimal(dst *decimal.Decimal, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			*dst = d
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
