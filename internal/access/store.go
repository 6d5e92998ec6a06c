// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taibuivan/studio/internal/platform/constants"
	"github.com/taibuivan/studio/internal/platform/kvstore"
)

// # Sessions

// SessionStore keeps ephemeral server-side state under random ids.
type SessionStore struct {
	store kvstore.Store
}

// NewSessionStore creates a store over the session kind of the backend.
func NewSessionStore(store kvstore.Store) *SessionStore {
	return &SessionStore{store: store}
}

// Create stores value and returns its new id.
func (sessions *SessionStore) Create(ctx context.Context, value any, ttl time.Duration) (string, error) {
	id := uuid.NewString()
	if err := sessions.Put(ctx, id, value, ttl); err != nil {
		return "", err
	}
	return id, nil
}

// Put stores value under a caller-chosen id.
func (sessions *SessionStore) Put(ctx context.Context, id string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("access: encode session: %w", err)
	}
	return sessions.store.Set(ctx, constants.PrefixSession+id, payload, ttl)
}

// Get decodes the session into dest. It reports false for an absent or expired id.
func (sessions *SessionStore) Get(ctx context.Context, id string, dest any) (bool, error) {
	return getJSON(ctx, sessions.store, constants.PrefixSession+id, dest)
}

// Exists reports whether id is live without decoding it.
func (sessions *SessionStore) Exists(ctx context.Context, id string) (bool, error) {
	return sessions.store.Exists(ctx, constants.PrefixSession+id)
}

// Destroy removes the session.
func (sessions *SessionStore) Destroy(ctx context.Context, id string) error {
	return sessions.store.Delete(ctx, constants.PrefixSession+id)
}

// # Cache

// CacheStore caches computed values as JSON.
type CacheStore struct {
	store kvstore.Store
}

// NewCacheStore creates a store over the cache kind of the backend.
func NewCacheStore(store kvstore.Store) *CacheStore {
	return &CacheStore{store: store}
}

// Get decodes the cached value into dest. It reports false on a miss.
func (cache *CacheStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	return getJSON(ctx, cache.store, constants.PrefixCache+key, dest)
}

// Set caches value for ttl.
func (cache *CacheStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("access: encode cache entry: %w", err)
	}
	return cache.store.Set(ctx, constants.PrefixCache+key, payload, ttl)
}

// Delete drops key.
func (cache *CacheStore) Delete(ctx context.Context, key string) error {
	return cache.store.Delete(ctx, constants.PrefixCache+key)
}

// Remember returns the cached value for key, computing and caching it on a miss.
// A failing cache never hides the computed value.
func Remember[T any](ctx context.Context, cache *CacheStore, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var cached T
	if hit, err := cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	value, err := compute(ctx)
	if err != nil {
		return value, err
	}

	_ = cache.Set(ctx, key, value, ttl)
	return value, nil
}

func getJSON(ctx context.Context, store kvstore.Store, key string, dest any) (bool, error) {
	payload, err := store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("access: decode %q: %w", key, err)
	}
	return true, nil
}
