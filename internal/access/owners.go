// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access

import (
	"context"
	"strconv"
	"time"
)

// CachedOwners memoizes an [OwnerResolver] in the cache store.
//
// Authorship never changes after creation, so a cached owner is only stale
// once the item is deleted. The store then answers not found on its own.
// Lookup failures are never cached.
type CachedOwners struct {
	next  OwnerResolver
	cache *CacheStore
	ttl   time.Duration
}

// NewCachedOwners wraps next with a cache of the given TTL.
func NewCachedOwners(next OwnerResolver, cache *CacheStore, ttl time.Duration) *CachedOwners {
	return &CachedOwners{next: next, cache: cache, ttl: ttl}
}

var _ OwnerResolver = (*CachedOwners)(nil)

// ResolveOwner implements [OwnerResolver].
func (owners *CachedOwners) ResolveOwner(ctx context.Context, resourceType string, resourceID int64) (int64, error) {
	key := "owner:" + resourceType + ":" + strconv.FormatInt(resourceID, 10)
	return Remember(ctx, owners.cache, key, owners.ttl, func(ctx context.Context) (int64, error) {
		return owners.next.ResolveOwner(ctx, resourceType, resourceID)
	})
}
