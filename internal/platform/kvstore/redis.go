// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindowScript increments a counter and sets its expiry on creation.
// A counter left without a TTL is repaired instead of living forever.
var incrWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
local ttl = tonumber(ARGV[1])
if ttl > 0 and (count == 1 or redis.call('PTTL', KEYS[1]) == -1) then
	redis.call('PEXPIRE', KEYS[1], ttl)
end
return count
`)

// RedisStore is the networked primary store.
//
// It does not own the client: [Backend] closes it.
type RedisStore struct {
	client    redis.UniversalClient
	opTimeout time.Duration
}

// NewRedisStore wraps client. opTimeout bounds every call on top of the client's own socket timeouts.
func NewRedisStore(client redis.UniversalClient, opTimeout time.Duration) *RedisStore {
	if opTimeout <= 0 {
		opTimeout = 500 * time.Millisecond
	}
	return &RedisStore{client: client, opTimeout: opTimeout}
}

func (store *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, store.opTimeout)
	defer cancel()

	value, err := store.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable("get", err)
	}
	return value, nil
}

func (store *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, store.opTimeout)
	defer cancel()

	if ttl < 0 {
		ttl = 0
	}
	if err := store.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

func (store *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, store.opTimeout)
	defer cancel()

	if err := store.client.Del(ctx, key).Err(); err != nil {
		return unavailable("del", err)
	}
	return nil
}

func (store *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, store.opTimeout)
	defer cancel()

	count, err := store.client.Exists(ctx, key).Result()
	if err != nil {
		return false, unavailable("exists", err)
	}
	return count > 0, nil
}

func (store *RedisStore) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, store.opTimeout)
	defer cancel()

	count, err := incrWindowScript.Run(ctx, store.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, unavailable("incr", err)
	}
	return count, nil
}

// Ping reports whether the server answers within the operation timeout.
func (store *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, store.opTimeout)
	defer cancel()

	if err := store.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close is a no-op; the client is shared across store kinds.
func (store *RedisStore) Close() error { return nil }

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %w", ErrUnavailable, op, err)
}
