// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/taibuivan/studio/internal/platform/apperr"
	"github.com/taibuivan/studio/internal/platform/constants"
	"github.com/taibuivan/studio/internal/platform/ctxutil"
	"github.com/taibuivan/studio/internal/platform/middleware"
	"github.com/taibuivan/studio/internal/platform/respond"
)

// KeyFunc derives the rate-limit identifier of a request.
type KeyFunc func(request *http.Request) string

// ByIP identifies callers by their client address. Forwarding headers count
// only when middleware.ClientIP resolved them from a trusted proxy.
func ByIP(request *http.Request) string {
	return middleware.RealIP(request)
}

// RateLimit enforces policy per key.
//
// The limit headers are set on every response, allowed or not. A denied
// request gets 429 with Retry-After.
func (limiter *RateLimiter) RateLimit(policy Policy, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			result := limiter.Enforce(request.Context(), policy, key(request))

			if !limiter.WriteResult(writer, request, result) {
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// WriteResult sets the limit headers and, for a denied result, writes the 429.
// It reports whether the request may proceed.
func (limiter *RateLimiter) WriteResult(writer http.ResponseWriter, request *http.Request, result Result) bool {
	header := writer.Header()
	header.Set(constants.HeaderRateLimitLimit, strconv.Itoa(result.Limit))
	header.Set(constants.HeaderRateLimitRemaining, strconv.Itoa(result.Remaining))
	header.Set(constants.HeaderRateLimitReset, strconv.FormatInt(ceilSeconds(result.ResetAtEpochMs()), 10))

	if result.Allowed {
		return true
	}

	retryAfter := int(result.RetryAfter(limiter.now()).Seconds())
	header.Set(constants.HeaderRetryAfter, strconv.Itoa(retryAfter))

	ctxutil.GetLogger(request.Context()).InfoContext(request.Context(), "rate_limited",
		slog.Bool("blocked", result.Blocked),
		slog.Int("retry_after", retryAfter),
	)

	respond.Error(writer, request, apperr.RateLimited(retryAfter))
	return false
}

func ceilSeconds(epochMs int64) int64 {
	return (epochMs + 999) / 1000
}
