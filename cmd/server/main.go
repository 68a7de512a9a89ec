package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sayso/market-engine/internal/api"
	"github.com/sayso/market-engine/internal/config"
	"github.com/sayso/market-engine/internal/market"
	"github.com/sayso/market-engine/internal/metrics"
	"github.com/sayso/market-engine/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	var level slog.Level
	_ = level.UnmarshalText([]byte(cfg.LogLevel))
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// --- Initialize journal ---
	var journal store.Journal
	var cleanup []func()

	if cfg.Database.DSN != "" {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
		if err != nil {
			slog.Error("invalid database dsn", "err", err)
			os.Exit(1)
		}
		poolCfg.MaxConns = int32(cfg.Database.PoolMaxConns)
		poolCfg.MinConns = int32(cfg.Database.PoolMinConns)
		pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		journal = store.NewPostgresJournal(pool)
		slog.Info("connected to PostgreSQL")
	} else {
		slog.Warn("database dsn not set, using in-memory journal (events will not persist)")
		journal = store.NewMemoryJournal()
	}

	// --- Redis: view cache and rate limiter ---
	var cache *store.ViewCache
	var limiter *store.RateLimiter

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cleanup = append(cleanup, func() { rdb.Close() })
		cache = store.NewViewCache(rdb, cfg.Redis.CacheTTL.Duration)
		limiter = store.NewRateLimiter(rdb)
		slog.Info("Redis cache enabled")
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- WebSocket hub ---
	hub := api.NewHub()
	go hub.Run()

	// --- Engine ---
	engCfg := market.Config{
		FeeRateBps:     cfg.Engine.FeeRateBps,
		MinStake:       cfg.Engine.MinStake,
		BettingCutoff:  cfg.Engine.BettingCutoff.Duration,
		MinSubmissions: cfg.Engine.MinSubmissions,
		MaxTextLength:  cfg.Engine.MaxTextLength,
		EmergencyDelay: cfg.Engine.EmergencyDelay.Duration,
		MinDuration:    cfg.Engine.MinDuration.Duration,
		MaxDuration:    cfg.Engine.MaxDuration.Duration,
		Operator:       cfg.Roles.Operator,
		FeeRecipient:   cfg.Roles.FeeRecipient,
	}
	eng := market.NewEngine(engCfg, journal, hub)
	if err := eng.Restore(context.Background()); err != nil {
		slog.Error("journal replay failed", "err", err)
		os.Exit(1)
	}
	active := eng.ActiveMarketCount()
	metrics.ActiveMarkets.Set(float64(active))
	slog.Info("state restored from journal", "active_markets", active)

	svc := api.NewService(eng, journal, cache)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)
	r.Use(api.Identity)

	// CORS middleware for frontend cross-origin requests.
	allowed := make(map[string]bool, len(cfg.Server.CORSOrigins))
	wildcard := false
	for _, o := range cfg.Server.CORSOrigins {
		if o == "*" {
			wildcard = true
		}
		allowed[o] = true
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch origin := r.Header.Get("Origin"); {
			case wildcard:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Account-ID")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"market-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(api.Auth(cfg.Server.APIKey))

		// WebSocket endpoint for real-time market events.
		r.Get("/ws", hub.HandleWS)

		// Reads.
		r.Get("/markets", svc.ListMarkets)
		r.Get("/markets/{marketID}", svc.GetMarket)
		r.Get("/markets/{marketID}/submissions", svc.ListSubmissions)
		r.Get("/markets/{marketID}/events", svc.MarketEvents)
		r.Get("/markets/{marketID}/audit", svc.AuditMarket)
		r.Get("/submissions/{submissionID}", svc.GetSubmission)
		r.Get("/distance", svc.Distance)

		// Mutations, rate limited per client.
		r.Group(func(r chi.Router) {
			r.Use(api.RateLimit(limiter, cfg.Server.RateLimitPerMinute, time.Minute))

			r.Post("/markets", svc.CreateMarket)
			r.Post("/markets/{marketID}/resolve", svc.Resolve)
			r.Post("/markets/{marketID}/refund", svc.Refund)
			r.Post("/markets/{marketID}/emergency", svc.EmergencyWithdraw)
			r.Post("/submissions", svc.CreateSubmission)
			r.Post("/submissions/{submissionID}/claim", svc.Claim)
			r.Post("/fees/withdraw", svc.WithdrawFees)
			r.Post("/pause", svc.Pause)
			r.Post("/resume", svc.Resume)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("market-engine listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()

	slog.Info("shutting down market-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("market-engine stopped")
}
