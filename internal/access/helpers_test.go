// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/studio/internal/access"
	"github.com/taibuivan/studio/internal/platform/kvstore"
	"github.com/taibuivan/studio/internal/platform/sec"
)

// manualClock is a clock that only moves when told to.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(start time.Time) *manualClock {
	return &manualClock{now: start}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// windowStart is aligned on a 30-minute boundary.
var windowStart = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newMemoryStore(t *testing.T, clock *manualClock) *kvstore.MemoryStore {
	t.Helper()

	store := kvstore.NewMemoryStore(kvstore.MemoryConfig{Now: clock.Now})
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// refusedStore is a fallback store whose primary is a real client aimed at a closed port.
func refusedStore(t *testing.T, clock *manualClock) kvstore.Store {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	store := kvstore.NewFallbackStore(
		kvstore.NewRedisStore(client, 300*time.Millisecond),
		kvstore.NewMemoryStore(kvstore.MemoryConfig{Now: clock.Now}),
		kvstore.FallbackConfig{Name: "test", Now: clock.Now},
	)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

const (
	testAccessSecret  = "access-secret-for-tests-0123456789abcdef"
	testRefreshSecret = "refresh-secret-for-tests-0123456789abcdef"
)

func newTokens(t *testing.T, clock *manualClock) *sec.TokenService {
	t.Helper()

	tokens, err := sec.NewTokenService(sec.TokenConfig{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		AccessTTL:     time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "studio.test",
	})
	require.NoError(t, err)
	return tokens.WithClock(clock.Now)
}

func identity(id int64, role sec.Role) sec.Identity {
	return sec.Identity{UserID: id, Username: "user", Email: "user@example.com", Role: role}
}

func issue(t *testing.T, tokens *sec.TokenService, who sec.Identity) string {
	t.Helper()

	token, err := tokens.IssueAccessToken(who, 0)
	require.NoError(t, err)
	return token
}

func bearer(request *http.Request, token string) *http.Request {
	request.Header.Set("Authorization", "Bearer "+token)
	return request
}

var errOwnerMissing = access.ErrOwnerNotFound

// ownerTable resolves owners from a fixed map.
type ownerTable map[int64]int64

func (o ownerTable) ResolveOwner(_ context.Context, _ string, id int64) (int64, error) {
	owner, ok := o[id]
	if !ok {
		return 0, errOwnerMissing
	}
	return owner, nil
}
