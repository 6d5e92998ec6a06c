// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package edge is the first check every request meets.

The [Guard] verifies only the signature and expiry of the access cookie. It
never consults the networked store, so a revoked token still passes here; the
identity it forwards is provisional until the access gateway confirms it.

Responsibilities:

  - Redirect anonymous visitors away from protected pages to the login page.
  - Redirect signed-in visitors away from guest-only pages (e.g. login).
  - Replace any client-supplied identity headers with verified ones.
  - Apply the security response headers to every response.
*/
package edge

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/taibuivan/studio/internal/platform/constants"
	"github.com/taibuivan/studio/internal/platform/ctxutil"
	"github.com/taibuivan/studio/internal/platform/sec"
)

// ReturnToParam carries the originally requested path on the login redirect.
const ReturnToParam = "from"

// Config is the route layout the guard enforces.
type Config struct {
	// ProtectedPrefixes require a valid token (e.g. "/admin").
	ProtectedPrefixes []string

	// GuestOnlyPaths are for anonymous visitors only (e.g. "/login").
	GuestOnlyPaths []string

	LoginPath string
	HomePath  string

	// Production enables HSTS and Secure cookie clearing.
	Production bool
}

// Guard is the edge middleware.
type Guard struct {
	tokens *sec.TokenService
	cfg    Config
}

// NewGuard creates a guard verifying with tokens.
func NewGuard(tokens *sec.TokenService, cfg Config) *Guard {
	return &Guard{tokens: tokens, cfg: cfg}
}

// # Middleware

// Middleware runs the guard ahead of next.
func (guard *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		guard.setSecurityHeaders(writer.Header())

		// 1. Never trust identity headers from the client
		header := request.Header
		header.Del(constants.HeaderXUserID)
		header.Del(constants.HeaderXUserRole)
		header.Del(constants.HeaderXUsername)

		// 2. Identify the caller (provisional: revocation is not checked here)
		token, present := guard.token(request)
		var claims *sec.Claims
		if present {
			verified, err := guard.tokens.Verify(token, sec.KindAccess)
			if err == nil {
				claims = verified
			} else {
				ctxutil.GetLogger(request.Context()).DebugContext(request.Context(), "edge_token_rejected",
					slog.String("failure", string(sec.ReasonOf(err))),
				)
			}
		}

		path := request.URL.Path

		// 3. Signed-in visitors skip guest-only pages
		if claims != nil && guard.isGuestOnly(path) {
			http.Redirect(writer, request, guard.cfg.HomePath, http.StatusTemporaryRedirect)
			return
		}

		// 4. Anonymous visitors are sent to login, remembering where they were going
		if claims == nil && guard.isProtected(path) {
			if present {
				guard.clearIdentityCookies(writer)
			}
			http.Redirect(writer, request, guard.loginURL(request), http.StatusTemporaryRedirect)
			return
		}

		// 5. Forward the verified identity
		if claims != nil {
			header.Set(constants.HeaderXUserID, strconv.FormatInt(claims.UserID, 10))
			header.Set(constants.HeaderXUserRole, string(claims.Role))
			header.Set(constants.HeaderXUsername, claims.Username)
		}

		next.ServeHTTP(writer, request)
	})
}

// token prefers the access cookie, the source of truth for page navigation.
func (guard *Guard) token(request *http.Request) (string, bool) {
	if cookie, err := request.Cookie(constants.AccessTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	authorization := request.Header.Get(constants.HeaderAuthorization)
	if scheme, value, found := strings.Cut(authorization, " "); found && strings.EqualFold(scheme, "Bearer") && value != "" {
		return strings.TrimSpace(value), true
	}

	return "", false
}

// # Route Matching

func (guard *Guard) isProtected(path string) bool {
	for _, prefix := range guard.cfg.ProtectedPrefixes {
		prefix = strings.TrimSuffix(prefix, "/")
		if prefix == "" {
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

func (guard *Guard) isGuestOnly(path string) bool {
	for _, guestPath := range guard.cfg.GuestOnlyPaths {
		if path == guestPath || path == guestPath+"/" {
			return true
		}
	}
	return false
}

// loginURL builds the login redirect. The return target is always a local path.
func (guard *Guard) loginURL(request *http.Request) string {
	target := request.URL.Path
	if request.URL.RawQuery != "" {
		target += "?" + request.URL.RawQuery
	}

	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return guard.cfg.LoginPath
	}

	return guard.cfg.LoginPath + "?" + url.Values{ReturnToParam: {target}}.Encode()
}

// # Response Hardening

func (guard *Guard) clearIdentityCookies(writer http.ResponseWriter) {
	for _, cookie := range []struct{ name, path string }{
		{constants.AccessTokenCookieName, "/"},
		{constants.RefreshTokenCookieName, constants.RefreshTokenCookiePath},
	} {
		http.SetCookie(writer, &http.Cookie{
			Name:     cookie.name,
			Value:    "",
			Path:     cookie.path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   guard.cfg.Production,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (guard *Guard) setSecurityHeaders(header http.Header) {
	header.Set("X-Content-Type-Options", "nosniff")
	header.Set("X-Frame-Options", "DENY")
	header.Set("X-XSS-Protection", "0")
	header.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	header.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
	header.Set("Content-Security-Policy",
		"default-src 'self'; "+
			"img-src 'self' data: https:; "+
			"style-src 'self' 'unsafe-inline'; "+
			"script-src 'self'; "+
			"connect-src 'self'; "+
			"frame-ancestors 'none'")

	if guard.cfg.Production {
		header.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
	}
}
