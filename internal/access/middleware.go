// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/taibuivan/studio/internal/platform/apperr"
	"github.com/taibuivan/studio/internal/platform/ctxutil"
	"github.com/taibuivan/studio/internal/platform/respond"
	"github.com/taibuivan/studio/internal/platform/sec"
)

// RequireAuth admits any request with a valid, unrevoked access token.
func (gateway *Gateway) RequireAuth(next http.Handler) http.Handler {
	return gateway.guard(next, gateway.Authenticate)
}

// Require admits requests whose role holds permission.
func (gateway *Gateway) Require(permission sec.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return gateway.guard(next, func(request *http.Request) Decision {
			return gateway.Authorize(request, permission)
		})
	}
}

// RequireAny admits requests whose role holds at least one of permissions.
func (gateway *Gateway) RequireAny(permissions ...sec.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return gateway.guard(next, func(request *http.Request) Decision {
			return gateway.AuthorizeAny(request, permissions...)
		})
	}
}

func (gateway *Gateway) guard(next http.Handler, decide func(*http.Request) Decision) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		decision := decide(request)
		if !decision.Authorized {
			WriteDenial(writer, request, decision)
			return
		}

		ctx := ctxutil.WithAuthUser(request.Context(), decision.Claims, decision.Token)
		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}

// WriteDenial logs the precise reason and writes the client-facing error.
//
// Credential failures share one generic 401 body. Authorization failures
// name the permission that was required.
func WriteDenial(writer http.ResponseWriter, request *http.Request, decision Decision) {
	ctx := request.Context()

	logAttrs := []any{
		slog.String("reason", string(decision.Reason)),
		slog.Any("required", decision.Required),
	}
	if failure := sec.ReasonOf(decision.Err); failure != "" {
		logAttrs = append(logAttrs, slog.String("token_failure", string(failure)))
	}
	if decision.Claims != nil {
		logAttrs = append(logAttrs,
			slog.Int64("user_id", decision.Claims.UserID),
			slog.String("role", string(decision.Claims.Role)),
		)
	}
	if decision.Err != nil {
		logAttrs = append(logAttrs, slog.Any("error", decision.Err))
	}
	ctxutil.GetLogger(ctx).WarnContext(ctx, "access_denied", logAttrs...)

	switch {
	case decision.Reason.Credential():
		writer.Header().Set("WWW-Authenticate", `Bearer realm="studio"`)
		respond.Error(writer, request, apperr.Unauthorized("Authentication required"))

	case decision.Reason == ReasonInsufficientPermission:
		respond.Error(writer, request, apperr.Forbidden("Insufficient permissions").
			WithMeta("required", decision.Required))

	case decision.Reason == ReasonNotOwner:
		respond.Error(writer, request, apperr.Forbidden("You can only modify your own resources").
			WithMeta("required", decision.Required).
			WithMeta("reason", string(ReasonNotOwner)))

	case decision.Reason == ReasonOwnerLookupFailed && errors.Is(decision.Err, ErrOwnerNotFound):
		respond.Error(writer, request, apperr.NotFound("Resource"))

	default:
		respond.Error(writer, request, apperr.Internal(decision.Err))
	}
}
