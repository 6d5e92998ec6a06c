// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/studio/internal/access"
	"github.com/taibuivan/studio/internal/platform/kvstore"
)

// countingOwners counts lookups reaching the underlying resolver.
type countingOwners struct {
	table ownerTable
	calls int
}

func (c *countingOwners) ResolveOwner(ctx context.Context, resourceType string, id int64) (int64, error) {
	c.calls++
	return c.table.ResolveOwner(ctx, resourceType, id)
}

/*
TestCachedOwners verifies hits skip the resolver and misses are never cached.
*/
func TestCachedOwners(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := kvstore.NewMemoryStore(kvstore.MemoryConfig{Now: func() time.Time { return now }})
	t.Cleanup(func() { _ = store.Close() })

	next := &countingOwners{table: ownerTable{10: 7}}
	owners := access.NewCachedOwners(next, access.NewCacheStore(store), time.Minute)

	// 1. First lookup reaches the resolver, the second is served from the cache
	for range 2 {
		owner, err := owners.ResolveOwner(ctx, "blog", 10)
		require.NoError(t, err)
		assert.Equal(t, int64(7), owner)
	}
	assert.Equal(t, 1, next.calls)

	// 2. Another resource type is a distinct entry
	_, err := owners.ResolveOwner(ctx, "projects", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)

	// 3. Unknown resources are looked up every time
	for range 2 {
		_, err := owners.ResolveOwner(ctx, "blog", 99)
		assert.ErrorIs(t, err, access.ErrOwnerNotFound)
	}
	assert.Equal(t, 4, next.calls)

	// 4. Expiry sends the lookup back to the resolver
	now = now.Add(time.Minute + time.Second)
	_, err = owners.ResolveOwner(ctx, "blog", 10)
	require.NoError(t, err)
	assert.Equal(t, 5, next.calls)
}
