// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package kvstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// maxSweepPasses caps the work a single tick may do.
const maxSweepPasses = 16

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryConfig configures a [MemoryStore].
type MemoryConfig struct {
	// SweepInterval is the period of the background eviction. Zero disables it.
	SweepInterval time.Duration

	// SweepBatch bounds how many entries one pass examines while holding the lock.
	SweepBatch int

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// MemoryStore is the in-process fallback store.
//
// Reads treat an expired entry as absent whether or not it has been evicted.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	closed  bool

	now   func() time.Time
	batch int

	stop      chan struct{}
	stopOnce  sync.Once
	sweeperWG sync.WaitGroup
}

// NewMemoryStore creates a store and starts its sweeper.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	store := &MemoryStore{
		entries: make(map[string]entry),
		now:     cfg.Now,
		batch:   cfg.SweepBatch,
		stop:    make(chan struct{}),
	}
	if store.now == nil {
		store.now = time.Now
	}
	if store.batch <= 0 {
		store.batch = 512
	}

	if cfg.SweepInterval > 0 {
		store.sweeperWG.Add(1)
		go store.runSweeper(cfg.SweepInterval)
	}

	return store
}

func (store *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.closed {
		return nil, ErrClosed
	}

	item, ok := store.entries[key]
	if !ok || item.expired(store.now()) {
		return nil, ErrNotFound
	}

	value := make([]byte, len(item.value))
	copy(value, item.value)
	return value, nil
}

func (store *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	store.mu.Lock()
	defer store.mu.Unlock()

	if store.closed {
		return ErrClosed
	}

	store.entries[key] = entry{value: stored, expiresAt: store.deadline(ttl)}
	return nil
}

func (store *MemoryStore) Delete(_ context.Context, key string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.closed {
		return ErrClosed
	}

	delete(store.entries, key)
	return nil
}

func (store *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.closed {
		return false, ErrClosed
	}

	item, ok := store.entries[key]
	return ok && !item.expired(store.now()), nil
}

// IncrWindow increments under the store mutex, so concurrent callers never lose an update.
func (store *MemoryStore) IncrWindow(_ context.Context, key string, ttl time.Duration) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.closed {
		return 0, ErrClosed
	}

	item, ok := store.entries[key]
	if !ok || item.expired(store.now()) {
		store.entries[key] = entry{value: []byte("1"), expiresAt: store.deadline(ttl)}
		return 1, nil
	}

	count, err := strconv.ParseInt(string(item.value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("kvstore: value at %q is not a counter: %w", key, err)
	}

	count++
	item.value = strconv.AppendInt(item.value[:0], count, 10)
	store.entries[key] = item
	return count, nil
}

// Len returns the number of physically stored entries, expired ones included.
func (store *MemoryStore) Len() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.entries)
}

// Close stops the sweeper and drops every entry. It is idempotent.
func (store *MemoryStore) Close() error {
	store.stopOnce.Do(func() {
		close(store.stop)
	})
	store.sweeperWG.Wait()

	store.mu.Lock()
	store.closed = true
	store.entries = make(map[string]entry)
	store.mu.Unlock()

	return nil
}

func (store *MemoryStore) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return store.now().Add(ttl)
}

// # Eviction

func (store *MemoryStore) runSweeper(interval time.Duration) {
	defer store.sweeperWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-store.stop:
			return
		case <-ticker.C:
			store.Sweep()
		}
	}
}

// Sweep evicts expired entries and returns how many were removed.
//
// Each pass holds the lock for at most one batch. Another pass follows only
// while more than a quarter of the examined entries were expired.
func (store *MemoryStore) Sweep() int {
	removed := 0
	for pass := 0; pass < maxSweepPasses; pass++ {
		examined, evicted := store.sweepPass()
		removed += evicted
		if examined < store.batch || evicted*4 <= examined {
			break
		}
	}
	return removed
}

func (store *MemoryStore) sweepPass() (examined, evicted int) {
	store.mu.Lock()
	defer store.mu.Unlock()

	now := store.now()
	for key, item := range store.entries {
		if examined == store.batch {
			break
		}
		examined++
		if item.expired(now) {
			delete(store.entries, key)
			evicted++
		}
	}
	return examined, evicted
}
