// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/taibuivan/studio/internal/platform/constants"
	"github.com/taibuivan/studio/internal/platform/ctxutil"
	"github.com/taibuivan/studio/internal/platform/kvstore"
	"github.com/taibuivan/studio/internal/platform/metrics"
)

// # Rate Limiting

// Result is the outcome of one rate-limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int

	// ResetAt is when the current window (or block) ends.
	ResetAt time.Time

	// Blocked is set when the caller is under an extended block.
	Blocked bool
}

// ResetAtEpochMs returns ResetAt as unix milliseconds.
func (r Result) ResetAtEpochMs() int64 {
	return r.ResetAt.UnixMilli()
}

// RetryAfter is the wait before a denied caller may try again, rounded up to whole seconds.
func (r Result) RetryAfter(now time.Time) time.Duration {
	wait := r.ResetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return (wait + time.Second - 1).Truncate(time.Second)
}

// Policy names a scope and its limits.
type Policy struct {
	Scope  string
	Limit  int
	Window time.Duration

	// BlockAfter denied attempts place the caller under a block of BlockDuration.
	// Zero disables blocking.
	BlockAfter    int
	BlockDuration time.Duration
}

// RateLimiter counts attempts in fixed windows.
//
// The window index is floor(now / window), so every window starts on a
// multiple of the window size. A caller can therefore send up to twice the
// limit across a window boundary. This is accepted behavior.
type RateLimiter struct {
	store   kvstore.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRateLimiter creates a limiter over the rate-limit kind of the backend.
func NewRateLimiter(store kvstore.Store, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{store: store, metrics: m, now: time.Now}
}

// WithClock returns a copy reading time from now. Used by tests.
func (limiter *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	clone := *limiter
	clone.now = now
	return &clone
}

func rateKey(scope, identifier, suffix string) string {
	return constants.PrefixRateLimit + scope + ":" + identifier + ":" + suffix
}

// Check increments the counter of the current window and compares it to limit.
//
// It always returns a well-formed result. If no backend can count, the
// attempt is allowed and the error is logged.
func (limiter *RateLimiter) Check(ctx context.Context, scope, identifier string, limit int, window time.Duration) Result {
	now := limiter.now()
	windowMs := window.Milliseconds()
	if windowMs <= 0 {
		windowMs = 1
	}

	index := now.UnixMilli() / windowMs
	result := Result{
		Limit:   limit,
		ResetAt: time.UnixMilli((index + 1) * windowMs),
	}

	count, err := limiter.store.IncrWindow(ctx, rateKey(scope, identifier, "w"+strconv.FormatInt(index, 10)), window)
	if err != nil {
		ctxutil.GetLogger(ctx).ErrorContext(ctx, "rate_limit_count_failed",
			slog.String("scope", scope),
			slog.Any("error", err),
		)
		count = 1
	}

	result.Allowed = count <= int64(limit)
	result.Remaining = max(0, limit-int(count))

	limiter.metrics.RateLimitDecision(scope, outcome(result))
	return result
}

// Enforce applies policy, including the extended block.
//
// A blocked caller is denied regardless of the current window and does not
// consume window capacity.
func (limiter *RateLimiter) Enforce(ctx context.Context, policy Policy, identifier string) Result {
	if policy.BlockAfter > 0 {
		if until, blocked := limiter.blockedUntil(ctx, policy.Scope, identifier); blocked {
			result := Result{Limit: policy.Limit, ResetAt: until, Blocked: true}
			limiter.metrics.RateLimitDecision(policy.Scope, outcome(result))
			return result
		}
	}

	result := limiter.Check(ctx, policy.Scope, identifier, policy.Limit, policy.Window)
	if result.Allowed || policy.BlockAfter <= 0 {
		return result
	}

	// Count the violation; the counter lives as long as a block would.
	violations, err := limiter.store.IncrWindow(ctx, rateKey(policy.Scope, identifier, "violations"), policy.BlockDuration)
	if err != nil || violations < int64(policy.BlockAfter) {
		return result
	}

	until := limiter.now().Add(policy.BlockDuration)
	value := []byte(strconv.FormatInt(until.UnixMilli(), 10))
	if err := limiter.store.Set(ctx, rateKey(policy.Scope, identifier, "blocked"), value, policy.BlockDuration); err != nil {
		return result
	}
	_ = limiter.store.Delete(ctx, rateKey(policy.Scope, identifier, "violations"))

	ctxutil.GetLogger(ctx).WarnContext(ctx, "rate_limit_block_applied",
		slog.String("scope", policy.Scope),
		slog.Time("until", until),
	)

	result.Blocked = true
	result.ResetAt = until
	return result
}

// Reset clears the block and violation count, e.g. after a successful login.
func (limiter *RateLimiter) Reset(ctx context.Context, scope, identifier string) {
	_ = limiter.store.Delete(ctx, rateKey(scope, identifier, "violations"))
	_ = limiter.store.Delete(ctx, rateKey(scope, identifier, "blocked"))
}

func (limiter *RateLimiter) blockedUntil(ctx context.Context, scope, identifier string) (time.Time, bool) {
	value, err := limiter.store.Get(ctx, rateKey(scope, identifier, "blocked"))
	if err != nil {
		return time.Time{}, false
	}

	untilMs, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	until := time.UnixMilli(untilMs)
	return until, limiter.now().Before(until)
}

func outcome(result Result) string {
	switch {
	case result.Blocked:
		return "blocked"
	case result.Allowed:
		return "allowed"
	default:
		return "denied"
	}
}

// String renders a result for logs.
func (r Result) String() string {
	return fmt.Sprintf("allowed=%t remaining=%d/%d reset=%d", r.Allowed, r.Remaining, r.Limit, r.ResetAtEpochMs())
}
