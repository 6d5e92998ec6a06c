// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/studio/internal/platform/metrics"
)

// Kind names an independent store. Each kind has its own fallback map.
type Kind string

const (
	KindRevocation Kind = "revocation"
	KindRateLimit  Kind = "ratelimit"
	KindSession    Kind = "session"
	KindCache      Kind = "cache"
)

// Kinds lists every store kind a [Backend] serves.
var Kinds = []Kind{KindRevocation, KindRateLimit, KindSession, KindCache}

// Options configures a [Backend].
type Options struct {
	// Client is the networked store. Nil runs memory-only.
	Client *redis.Client

	OpTimeout     time.Duration
	SweepInterval time.Duration
	SweepBatch    int
	Cooldown      time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Backend owns the networked client and one fallback store per [Kind].
//
// It is constructed explicitly and passed to consumers; there is no package-level store.
type Backend struct {
	client *redis.Client
	redis  *RedisStore
	stores map[Kind]*FallbackStore
	logger *slog.Logger
}

// Open builds the stores. An unreachable networked store is logged and the
// backend starts anyway; every call falls back until it answers.
func Open(ctx context.Context, opts Options) *Backend {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backend := &Backend{
		client: opts.Client,
		stores: make(map[Kind]*FallbackStore, len(Kinds)),
		logger: logger,
	}

	var primary Store
	if opts.Client != nil {
		backend.redis = NewRedisStore(opts.Client, opts.OpTimeout)
		primary = backend.redis

		if err := backend.redis.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "store_starting_in_fallback_mode", slog.Any("error", err))
		}
	} else {
		logger.WarnContext(ctx, "store_running_memory_only")
	}

	for _, kind := range Kinds {
		memory := NewMemoryStore(MemoryConfig{
			SweepInterval: opts.SweepInterval,
			SweepBatch:    opts.SweepBatch,
			Now:           opts.Now,
		})
		backend.stores[kind] = NewFallbackStore(primary, memory, FallbackConfig{
			Name:     string(kind),
			Cooldown: opts.Cooldown,
			Logger:   logger,
			Metrics:  opts.Metrics,
			Now:      opts.Now,
		})
	}

	return backend
}

// Store returns the store for kind. It panics on an unknown kind, which is a wiring bug.
func (backend *Backend) Store(kind Kind) Store {
	store, ok := backend.stores[kind]
	if !ok {
		panic(fmt.Sprintf("kvstore: unknown store kind %q", kind))
	}
	return store
}

// Ping checks the networked store. It returns [ErrUnavailable] when running memory-only.
func (backend *Backend) Ping(ctx context.Context) error {
	if backend.redis == nil {
		return fmt.Errorf("%w: no networked store configured", ErrUnavailable)
	}
	return backend.redis.Ping(ctx)
}

// Close stops every sweeper and closes the networked client.
func (backend *Backend) Close() error {
	var errs []error
	for _, kind := range Kinds {
		if err := backend.stores[kind].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if backend.client != nil {
		if err := backend.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kvstore: close redis client: %w", err))
		}
	}

	backend.logger.Info("store backend closed")
	return errors.Join(errs...)
}
