// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/taibuivan/studio/internal/platform/apperr"
	"github.com/taibuivan/studio/internal/platform/constants"
	"github.com/taibuivan/studio/internal/platform/ctxutil"
	"github.com/taibuivan/studio/internal/platform/respond"
	"github.com/taibuivan/studio/internal/platform/sec"
)

const csrfSessionPrefix = "csrf:"

// CSRF issues and checks double-submit tokens.
//
// A token is valid when the header copy equals the cookie copy and the
// server still holds it. The server copy makes tokens expire and lets
// logout invalidate them.
type CSRF struct {
	sessions *SessionStore
	ttl      time.Duration
	secure   bool
}

// NewCSRF creates the CSRF guard. secure marks the cookie Secure.
func NewCSRF(sessions *SessionStore, ttl time.Duration, secure bool) *CSRF {
	return &CSRF{sessions: sessions, ttl: ttl, secure: secure}
}

// Issue creates a token, stores it and sets the cookie.
func (csrf *CSRF) Issue(ctx context.Context, writer http.ResponseWriter) (string, error) {
	token, err := sec.GenerateSecureToken(32)
	if err != nil {
		return "", err
	}

	if err := csrf.sessions.Put(ctx, csrfSessionPrefix+token, true, csrf.ttl); err != nil {
		return "", err
	}

	// Readable by scripts so the client can echo it in the header.
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.CSRFCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(csrf.ttl.Seconds()),
		Secure:   csrf.secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})

	return token, nil
}

// Valid reports whether the request carries a matching, live token.
func (csrf *CSRF) Valid(request *http.Request) bool {
	headerToken := request.Header.Get(constants.HeaderCSRFToken)
	cookie, err := request.Cookie(constants.CSRFCookieName)
	if headerToken == "" || err != nil || cookie.Value == "" {
		return false
	}

	if subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookie.Value)) != 1 {
		return false
	}

	live, err := csrf.sessions.Exists(request.Context(), csrfSessionPrefix+headerToken)
	return err == nil && live
}

// Revoke forgets the token carried by the request, if any.
func (csrf *CSRF) Revoke(request *http.Request) {
	if cookie, err := request.Cookie(constants.CSRFCookieName); err == nil && cookie.Value != "" {
		_ = csrf.sessions.Destroy(request.Context(), csrfSessionPrefix+cookie.Value)
	}
}

// RequireCSRF rejects unsafe methods without a valid token.
func (csrf *CSRF) RequireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(writer, request)
			return
		}

		if !csrf.Valid(request) {
			ctxutil.GetLogger(request.Context()).WarnContext(request.Context(), "csrf_rejected",
				slog.String("method", request.Method),
			)
			respond.Error(writer, request, apperr.Forbidden("Invalid or missing CSRF token").WithMeta("reason", "csrf"))
			return
		}

		next.ServeHTTP(writer, request)
	})
}
