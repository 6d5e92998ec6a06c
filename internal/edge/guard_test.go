// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package edge_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/studio/internal/edge"
	"github.com/taibuivan/studio/internal/platform/constants"
	"github.com/taibuivan/studio/internal/platform/sec"
)

var issuedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type forwarded struct {
	called   bool
	userID   string
	role     string
	username string
}

func newGuard(t *testing.T, now time.Time, production bool) (*edge.Guard, *sec.TokenService) {
	t.Helper()

	tokens, err := sec.NewTokenService(sec.TokenConfig{
		AccessSecret:  "edge-access-secret-0123456789abcdefgh",
		RefreshSecret: "edge-refresh-secret-0123456789abcdefgh",
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
		Issuer:        "studio.test",
	})
	require.NoError(t, err)
	tokens = tokens.WithClock(func() time.Time { return now })

	guard := edge.NewGuard(tokens, edge.Config{
		ProtectedPrefixes: []string{"/admin"},
		GuestOnlyPaths:    []string{"/login"},
		LoginPath:         "/login",
		HomePath:          "/admin",
		Production:        production,
	})
	return guard, tokens
}

func serve(guard *edge.Guard, request *http.Request) (*httptest.ResponseRecorder, *forwarded) {
	seen := &forwarded{}
	handler := guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.called = true
		seen.userID = r.Header.Get(constants.HeaderXUserID)
		seen.role = r.Header.Get(constants.HeaderXUserRole)
		seen.username = r.Header.Get(constants.HeaderXUsername)
		w.WriteHeader(http.StatusOK)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder, seen
}

func withCookie(request *http.Request, token string) *http.Request {
	request.AddCookie(&http.Cookie{Name: constants.AccessTokenCookieName, Value: token})
	return request
}

func adminToken(t *testing.T, tokens *sec.TokenService) string {
	t.Helper()

	token, err := tokens.IssueAccessToken(sec.Identity{UserID: 3, Username: "root", Email: "root@example.com", Role: sec.RoleSuperAdmin}, 0)
	require.NoError(t, err)
	return token
}

/*
TestGuard_AnonymousProtectedRedirect verifies anonymous visitors go to login with a return target.
*/
func TestGuard_AnonymousProtectedRedirect(t *testing.T) {
	guard, _ := newGuard(t, issuedAt, false)

	recorder, seen := serve(guard, httptest.NewRequest(http.MethodGet, "/admin/posts?page=2", nil))

	assert.False(t, seen.called)
	assert.Equal(t, http.StatusTemporaryRedirect, recorder.Code)
	assert.Equal(t, "/login?from=%2Fadmin%2Fposts%3Fpage%3D2", recorder.Header().Get("Location"))
	assert.Empty(t, recorder.Result().Cookies())
}

/*
TestGuard_InvalidTokenClearsCookies verifies a stale cookie is cleared on redirect.
*/
func TestGuard_InvalidTokenClearsCookies(t *testing.T) {
	_, tokens := newGuard(t, issuedAt, false)
	token := adminToken(t, tokens)

	// The same token seen two hours later is expired.
	later, _ := newGuard(t, issuedAt.Add(2*time.Hour), false)
	recorder, seen := serve(later, withCookie(httptest.NewRequest(http.MethodGet, "/admin", nil), token))

	assert.False(t, seen.called)
	assert.Equal(t, http.StatusTemporaryRedirect, recorder.Code)

	cleared := map[string]int{}
	for _, cookie := range recorder.Result().Cookies() {
		cleared[cookie.Name] = cookie.MaxAge
	}
	assert.Equal(t, -1, cleared[constants.AccessTokenCookieName])
	assert.Equal(t, -1, cleared[constants.RefreshTokenCookieName])
}

/*
TestGuard_ValidTokenForwardsIdentity verifies verified identity replaces spoofed headers.
*/
func TestGuard_ValidTokenForwardsIdentity(t *testing.T) {
	guard, tokens := newGuard(t, issuedAt, false)

	request := withCookie(httptest.NewRequest(http.MethodGet, "/admin/posts", nil), adminToken(t, tokens))
	request.Header.Set(constants.HeaderXUserID, "999")
	request.Header.Set(constants.HeaderXUserRole, "superadmin")

	recorder, seen := serve(guard, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, seen.called)
	assert.Equal(t, "3", seen.userID)
	assert.Equal(t, "superadmin", seen.role)
	assert.Equal(t, "root", seen.username)
}

/*
TestGuard_StripsSpoofedHeaders verifies anonymous requests never carry identity downstream.
*/
func TestGuard_StripsSpoofedHeaders(t *testing.T) {
	guard, _ := newGuard(t, issuedAt, false)

	request := httptest.NewRequest(http.MethodGet, "/blog", nil)
	request.Header.Set(constants.HeaderXUserID, "1")
	request.Header.Set(constants.HeaderXUserRole, "superadmin")

	_, seen := serve(guard, request)

	assert.True(t, seen.called)
	assert.Empty(t, seen.userID)
	assert.Empty(t, seen.role)
}

/*
TestGuard_GuestOnlyRedirect verifies a signed-in visitor is sent past the login page.
*/
func TestGuard_GuestOnlyRedirect(t *testing.T) {
	guard, tokens := newGuard(t, issuedAt, false)

	recorder, seen := serve(guard, withCookie(httptest.NewRequest(http.MethodGet, "/login", nil), adminToken(t, tokens)))
	assert.False(t, seen.called)
	assert.Equal(t, http.StatusTemporaryRedirect, recorder.Code)
	assert.Equal(t, "/admin", recorder.Header().Get("Location"))

	// Anonymous visitors see the login page.
	recorder, seen = serve(guard, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.True(t, seen.called)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

/*
TestGuard_PrefixBoundary verifies "/administrator" is not under "/admin".
*/
func TestGuard_PrefixBoundary(t *testing.T) {
	guard, _ := newGuard(t, issuedAt, false)

	_, seen := serve(guard, httptest.NewRequest(http.MethodGet, "/administrator", nil))
	assert.True(t, seen.called)
}

/*
TestGuard_SecurityHeaders verifies hardening headers on every outcome.
*/
func TestGuard_SecurityHeaders(t *testing.T) {
	guard, _ := newGuard(t, issuedAt, true)

	for _, path := range []string{"/", "/admin"} {
		recorder, _ := serve(guard, httptest.NewRequest(http.MethodGet, path, nil))
		header := recorder.Header()

		assert.Equal(t, "nosniff", header.Get("X-Content-Type-Options"), path)
		assert.Equal(t, "DENY", header.Get("X-Frame-Options"), path)
		assert.NotEmpty(t, header.Get("Content-Security-Policy"), path)
		assert.NotEmpty(t, header.Get("Referrer-Policy"), path)
		assert.Contains(t, header.Get("Strict-Transport-Security"), "max-age=", path)
	}

	development, _ := newGuard(t, issuedAt, false)
	recorder, _ := serve(development, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, recorder.Header().Get("Strict-Transport-Security"))
}
