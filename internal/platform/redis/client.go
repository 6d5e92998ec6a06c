// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis provides the managed client for the networked key-value store.

It backs revocation entries, rate-limit counters, sessions and cache entries.

Core Responsibilities:

  - Bounded I/O: Dial, read and write timeouts are always set.
  - Retries: go-redis retries with a real exponential backoff between attempts.
  - Non-fatal startup: An unreachable server is logged, never fatal. The store
    layer falls back to process memory until the server answers again.
*/
package redis

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/studio/internal/platform/config"
)

const pingTimeout = 2 * time.Second

// NewClient builds a client from cfg and probes it once.
//
// # Parameters
//   - context: Context for the initial ping.
//   - cfg: Connection, timeout and retry settings.
//   - logger: Structured logger for connection events.
func NewClient(context stdctx.Context, cfg config.Redis, logger *slog.Logger) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,

		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,

		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,

		// Pool configuration Tuning
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		PoolTimeout:  cfg.DialTimeout,
	}

	client := redis.NewClient(options)

	if err := Ping(context, client); err != nil {
		logger.Warn("redis_unreachable_at_startup",
			slog.String("addr", options.Addr),
			slog.Any("error", err),
		)
		return client
	}

	logger.Info("redis client connected",
		slog.String("addr", options.Addr),
		slog.Int("pool_size", options.PoolSize),
	)

	return client
}

// Ping verifies that the Redis client is healthy.
func Ping(context stdctx.Context, client *redis.Client) error {
	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}

	return nil
}
