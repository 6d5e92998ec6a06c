// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/taibuivan/studio/internal/platform/constants"
	"github.com/taibuivan/studio/internal/platform/ctxutil"
	"github.com/taibuivan/studio/internal/platform/kvstore"
	"github.com/taibuivan/studio/internal/platform/metrics"
	"github.com/taibuivan/studio/internal/platform/sec"
)

// revocationGrace pads every entry so it outlives the token it blocks.
const revocationGrace = 5 * time.Second

// RevocationStore is the blacklist of tokens revoked before their natural expiry.
//
// Entries are keyed by the SHA-256 of the token, never the token itself, and
// expire together with the token they block.
type RevocationStore struct {
	store   kvstore.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRevocationStore creates a store over the revocation kind of the backend.
func NewRevocationStore(store kvstore.Store, m *metrics.Metrics) *RevocationStore {
	return &RevocationStore{store: store, metrics: m, now: time.Now}
}

// WithClock returns a copy reading time from now. Used by tests.
func (revocations *RevocationStore) WithClock(now func() time.Time) *RevocationStore {
	clone := *revocations
	clone.now = now
	return &clone
}

func tokenKey(token string) string {
	return constants.PrefixBlacklist + sec.HashToken(token)
}

func subjectKey(subjectID int64) string {
	return constants.PrefixBlacklist + "user:" + strconv.FormatInt(subjectID, 10)
}

// Revoke blacklists token for at least remainingTTL.
//
// A networked store outage is absorbed by the fallback; false is returned only
// when no backend accepted the entry.
func (revocations *RevocationStore) Revoke(ctx context.Context, token string, remainingTTL time.Duration) bool {
	if token == "" {
		return false
	}
	if remainingTTL < 0 {
		remainingTTL = 0
	}

	if err := revocations.store.Set(ctx, tokenKey(token), []byte("1"), remainingTTL+revocationGrace); err != nil {
		ctxutil.GetLogger(ctx).ErrorContext(ctx, "token_revoke_failed", slog.Any("error", err))
		return false
	}

	revocations.metrics.Revocation("token")
	return true
}

// RevokeClaims blacklists a verified token for exactly its remaining lifetime.
func (revocations *RevocationStore) RevokeClaims(ctx context.Context, token string, claims *sec.Claims) bool {
	return revocations.Revoke(ctx, token, claims.RemainingTTL(revocations.now()))
}

// IsRevoked reports whether token is blacklisted.
//
// A lookup error counts as revoked: a token is never accepted on a guess.
func (revocations *RevocationStore) IsRevoked(ctx context.Context, token string) bool {
	found, err := revocations.store.Exists(ctx, tokenKey(token))
	if err != nil {
		ctxutil.GetLogger(ctx).ErrorContext(ctx, "revocation_lookup_failed", slog.Any("error", err))
		return true
	}
	return found
}

// RevokeSubject invalidates every token of subjectID issued up to now.
// ttl should be the longest token lifetime, so no older token survives the entry.
func (revocations *RevocationStore) RevokeSubject(ctx context.Context, subjectID int64, ttl time.Duration) bool {
	revokedAt := strconv.FormatInt(revocations.now().UnixMilli(), 10)

	if err := revocations.store.Set(ctx, subjectKey(subjectID), []byte(revokedAt), ttl+revocationGrace); err != nil {
		ctxutil.GetLogger(ctx).ErrorContext(ctx, "subject_revoke_failed",
			slog.Int64("user_id", subjectID),
			slog.Any("error", err),
		)
		return false
	}

	revocations.metrics.Revocation("subject")
	return true
}

// IsSubjectRevoked reports whether a token issued at issuedAt predates a subject-wide revocation.
//
// The comparison is in milliseconds. Only a token issued in the same
// millisecond as the revocation is treated as revoked.
func (revocations *RevocationStore) IsSubjectRevoked(ctx context.Context, subjectID int64, issuedAt time.Time) bool {
	value, err := revocations.store.Get(ctx, subjectKey(subjectID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return false
	}
	if err != nil {
		ctxutil.GetLogger(ctx).ErrorContext(ctx, "revocation_lookup_failed", slog.Any("error", err))
		return true
	}

	revokedAt, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		return true
	}
	return issuedAt.UnixMilli() <= revokedAt
}
