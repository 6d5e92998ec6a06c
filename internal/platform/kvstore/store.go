// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package kvstore implements the dual-backend key-value store behind revocation,
rate limiting, sessions and caching.

Architecture:

  - [Store]: The contract every backend satisfies.
  - [RedisStore]: The networked primary. Every call is bounded by a timeout.
  - [MemoryStore]: The in-process fallback. One mutex-guarded map, swept in the background.
  - [FallbackStore]: Decorator that tries the primary and silently uses the fallback on error.
  - [Backend]: Owns the lifecycle of all of the above, one store per [Kind].

Accepted degradation: while the networked store is down, counters and entries are
per-process. Nothing written to the fallback is copied back when the primary recovers.
*/
package kvstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when a key is absent or expired.
	ErrNotFound = errors.New("kvstore: key not found")

	// ErrUnavailable wraps every networked backend failure (refused, timeout, closed pool).
	ErrUnavailable = errors.New("kvstore: backend unavailable")

	// ErrClosed is returned by a store after Close.
	ErrClosed = errors.New("kvstore: store closed")
)

// Store is a TTL key-value store.
//
// A ttl of zero or less stores the value without expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// IncrWindow atomically increments the counter at key and returns the new value.
	// The expiry is set only by the increment that creates the counter.
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)

	Close() error
}
