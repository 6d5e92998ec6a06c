// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package kvstore

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/taibuivan/studio/internal/platform/metrics"
)

// FallbackStore tries the primary store and uses the secondary when it fails.
//
// Primary failures never reach the caller. After a failure the primary is
// skipped for the cooldown, so an outage costs one timeout per cooldown
// instead of one per request. The first call after the cooldown probes it again.
type FallbackStore struct {
	name      string
	primary   Store
	secondary Store
	cooldown  time.Duration

	// skipUntil is the unix-nano time before which the primary is not tried.
	skipUntil atomic.Int64
	now       func() time.Time

	logger  *slog.Logger
	metrics *metrics.Metrics
	warn    *rate.Sometimes
}

// FallbackConfig configures a [FallbackStore].
type FallbackConfig struct {
	// Name labels logs and metrics (e.g. "revocation").
	Name     string
	Cooldown time.Duration
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

// NewFallbackStore composes primary and secondary. A nil primary means memory-only.
func NewFallbackStore(primary, secondary Store, cfg FallbackConfig) *FallbackStore {
	store := &FallbackStore{
		name:      cfg.Name,
		primary:   primary,
		secondary: secondary,
		cooldown:  cfg.Cooldown,
		now:       cfg.Now,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		warn:      &rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
	if store.now == nil {
		store.now = time.Now
	}
	if store.logger == nil {
		store.logger = slog.Default()
	}
	return store
}

// # Primary Health

func (store *FallbackStore) usePrimary() bool {
	if store.primary == nil {
		return false
	}
	return store.now().UnixNano() >= store.skipUntil.Load()
}

// absorb records a primary failure. A miss is an answer, not a failure.
func (store *FallbackStore) absorb(ctx context.Context, op string, err error) {
	if err == nil || errors.Is(err, ErrNotFound) {
		return
	}

	// A canceled caller is not evidence of an outage.
	if ctx.Err() == nil && store.cooldown > 0 {
		store.skipUntil.Store(store.now().Add(store.cooldown).UnixNano())
	}

	store.metrics.StoreFallback(store.name, op)
	store.warn.Do(func() {
		store.logger.WarnContext(ctx, "store_fallback_engaged",
			slog.String("store", store.name),
			slog.String("op", op),
			slog.Any("error", err),
		)
	})
}

// # Store Operations

// Get reads the primary first. A miss on the primary also consults the
// secondary, so entries written during an outage stay visible in this process.
func (store *FallbackStore) Get(ctx context.Context, key string) ([]byte, error) {
	if store.usePrimary() {
		value, err := store.primary.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		store.absorb(ctx, "get", err)
	}
	return store.secondary.Get(ctx, key)
}

func (store *FallbackStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if store.usePrimary() {
		err := store.primary.Set(ctx, key, value, ttl)
		if err == nil {
			return nil
		}
		store.absorb(ctx, "set", err)
	}
	return store.secondary.Set(ctx, key, value, ttl)
}

// Delete removes the key from both backends.
func (store *FallbackStore) Delete(ctx context.Context, key string) error {
	if store.usePrimary() {
		if err := store.primary.Delete(ctx, key); err != nil {
			store.absorb(ctx, "del", err)
		}
	}
	return store.secondary.Delete(ctx, key)
}

func (store *FallbackStore) Exists(ctx context.Context, key string) (bool, error) {
	if store.usePrimary() {
		found, err := store.primary.Exists(ctx, key)
		if err == nil && found {
			return true, nil
		}
		if err != nil {
			store.absorb(ctx, "exists", err)
		}
	}
	return store.secondary.Exists(ctx, key)
}

// IncrWindow never merges counters across backends: during an outage limits become per-process.
func (store *FallbackStore) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if store.usePrimary() {
		count, err := store.primary.IncrWindow(ctx, key, ttl)
		if err == nil {
			return count, nil
		}
		store.absorb(ctx, "incr", err)
	}
	return store.secondary.IncrWindow(ctx, key, ttl)
}

// Close closes the secondary. The primary is shared and closed by its owner.
func (store *FallbackStore) Close() error {
	return store.secondary.Close()
}
