// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Studio HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool) and run migrations.
//  4. Open the store backend (Redis with in-process fallback).
//  5. Build the token, revocation, rate-limit and gateway components.
//  6. Wire HTTP handlers and middleware.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taibuivan/studio/internal/access"
	"github.com/taibuivan/studio/internal/api"
	"github.com/taibuivan/studio/internal/audit"
	"github.com/taibuivan/studio/internal/auth"
	"github.com/taibuivan/studio/internal/content"
	"github.com/taibuivan/studio/internal/edge"
	"github.com/taibuivan/studio/internal/platform/config"
	"github.com/taibuivan/studio/internal/platform/constants"
	"github.com/taibuivan/studio/internal/platform/kvstore"
	"github.com/taibuivan/studio/internal/platform/metrics"
	"github.com/taibuivan/studio/internal/platform/migration"
	pgstore "github.com/taibuivan/studio/internal/platform/postgres"
	redisstore "github.com/taibuivan/studio/internal/platform/redis"
	"github.com/taibuivan/studio/internal/platform/sec"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	if cfg.UsingDevSecrets {
		log.Warn("using_development_signing_secrets")
	}

	log.Info("configuration_loaded",
		slog.String("environment", string(cfg.Environment)),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	m := metrics.NewDefault()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, cfg.Postgres, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing_postgres_pool")
		pool.Close()
	}()

	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 4. Store Backend ──────────────────────────────────────────────────
	// An unreachable Redis is not fatal: every store kind falls back in-process.
	backend := kvstore.Open(startupCtx, kvstore.Options{
		Client:        redisstore.NewClient(startupCtx, cfg.Redis, log),
		OpTimeout:     cfg.Redis.OpTimeout,
		SweepInterval: cfg.Store.SweepInterval,
		SweepBatch:    cfg.Store.SweepBatch,
		Cooldown:      cfg.Store.Cooldown,
		Logger:        log,
		Metrics:       m,
	})
	defer func() {
		log.Info("closing_store_backend")
		if cerr := backend.Close(); cerr != nil {
			log.Error("store_close_failed", slog.Any("error", cerr))
		}
	}()

	// ── 5. Access Control ─────────────────────────────────────────────────
	tokens, err := sec.NewTokenService(sec.TokenConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        constants.AuthIssuer,
	})
	must(log, err, "initialize token service")

	contentStore := content.NewPostgresStore(pool)
	revocations := access.NewRevocationStore(backend.Store(kvstore.KindRevocation), m)
	limiter := access.NewRateLimiter(backend.Store(kvstore.KindRateLimit), m)
	owners := access.NewCachedOwners(contentStore, access.NewCacheStore(backend.Store(kvstore.KindCache)), constants.OwnerCacheTTL)
	gateway := access.NewGateway(tokens, revocations, owners, m)
	csrf := access.NewCSRF(access.NewSessionStore(backend.Store(kvstore.KindSession)), constants.CSRFTokenTTL, cfg.IsProduction())

	guard := edge.NewGuard(tokens, edge.Config{
		ProtectedPrefixes: cfg.Edge.ProtectedPrefixes,
		GuestOnlyPaths:    cfg.Edge.GuestOnlyPaths,
		LoginPath:         cfg.Edge.LoginPath,
		HomePath:          cfg.Edge.HomePath,
		Production:        cfg.IsProduction(),
	})

	// ── 6. Domain Wiring ──────────────────────────────────────────────────
	authService := auth.NewService(auth.NewUserRepository(pool), tokens, revocations)
	authHandler := auth.NewHandler(authService, auth.HandlerConfig{
		Gateway: gateway,
		Limiter: limiter,
		LoginPolicy: access.Policy{
			Scope:         "login",
			Limit:         cfg.RateLimit.LoginLimit,
			Window:        cfg.RateLimit.LoginWindow,
			BlockAfter:    cfg.RateLimit.LoginBlockAfter,
			BlockDuration: cfg.RateLimit.LoginBlockDuration,
		},
		CSRF:          csrf,
		SecureCookies: cfg.IsProduction(),
	})

	recorder := audit.NewRecorder(audit.NewPostgresSink(pool))
	contentHandler := content.NewHandler(gateway, csrf, contentStore, recorder)

	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error {
			return pgstore.Ping(ctx, pool)
		},
		CheckStore: backend.Ping,
	}, log)

	// ── 7. HTTP Server ────────────────────────────────────────────────────
	server := api.NewServer(cfg, log, api.Middleware{
		Instrument: m.Instrument,
		Edge:       guard.Middleware,
		APIRateLimit: limiter.RateLimit(access.Policy{
			Scope:  "api",
			Limit:  cfg.RateLimit.APILimit,
			Window: cfg.RateLimit.APIWindow,
		}, access.ByIP),
	}, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Metrics:   m.Handler(),
		Auth:      authHandler,
		Content:   contentHandler,
	})

	// ── 8. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_error", slog.Any("error", err))
	}

	// Deferred closers run after the server drains: store backend, then the pool.
	log.Info("shutting_down_server", slog.Duration("timeout", constants.ShutdownTimeout))
	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		log.Error("shutdown_error", slog.Any("error", err))
		return
	}

	log.Info("server_stopped_cleanly")
}

func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", constants.AppName))
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
