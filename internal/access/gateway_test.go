// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/studio/internal/access"
	"github.com/taibuivan/studio/internal/platform/constants"
	"github.com/taibuivan/studio/internal/platform/ctxutil"
	"github.com/taibuivan/studio/internal/platform/sec"
)

type gatewayFixture struct {
	clock       *manualClock
	tokens      *sec.TokenService
	revocations *access.RevocationStore
	gateway     *access.Gateway
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	clock := newManualClock(windowStart)
	tokens := newTokens(t, clock)
	revocations := access.NewRevocationStore(newMemoryStore(t, clock), nil).WithClock(clock.Now)
	owners := ownerTable{100: 7, 200: 8}

	return &gatewayFixture{
		clock:       clock,
		tokens:      tokens,
		revocations: revocations,
		gateway:     access.NewGateway(tokens, revocations, owners, nil),
	}
}

func request() *http.Request {
	return httptest.NewRequest(http.MethodDelete, "/api/v1/blog/100", nil)
}

/*
TestGateway_CredentialReasons verifies each credential failure has its own reason.
*/
func TestGateway_CredentialReasons(t *testing.T) {
	f := newGatewayFixture(t)
	editorToken := issue(t, f.tokens, identity(7, sec.RoleEditor))

	refreshToken, err := f.tokens.IssueRefreshToken(identity(7, sec.RoleEditor), 0)
	require.NoError(t, err)

	revokedToken := issue(t, f.tokens, identity(9, sec.RoleAdmin))
	require.True(t, f.revocations.Revoke(context.Background(), revokedToken, time.Hour))

	tests := []struct {
		name    string
		prepare func(*http.Request) *http.Request
		want    access.Reason
	}{
		{name: "no credential", prepare: func(r *http.Request) *http.Request { return r }, want: access.ReasonMissingToken},
		{name: "wrong scheme", prepare: func(r *http.Request) *http.Request {
			r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
			return r
		}, want: access.ReasonInvalidToken},
		{name: "garbage token", prepare: func(r *http.Request) *http.Request { return bearer(r, "garbage") }, want: access.ReasonInvalidToken},
		{name: "refresh token", prepare: func(r *http.Request) *http.Request { return bearer(r, refreshToken) }, want: access.ReasonInvalidToken},
		{name: "revoked token", prepare: func(r *http.Request) *http.Request { return bearer(r, revokedToken) }, want: access.ReasonRevoked},
		{name: "valid header", prepare: func(r *http.Request) *http.Request { return bearer(r, editorToken) }, want: access.ReasonNone},
		{name: "valid cookie", prepare: func(r *http.Request) *http.Request {
			r.AddCookie(&http.Cookie{Name: constants.AccessTokenCookieName, Value: editorToken})
			return r
		}, want: access.ReasonNone},
		{name: "header wins over cookie", prepare: func(r *http.Request) *http.Request {
			r.AddCookie(&http.Cookie{Name: constants.AccessTokenCookieName, Value: editorToken})
			return bearer(r, "garbage")
		}, want: access.ReasonInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := f.gateway.Authenticate(tt.prepare(request()))
			assert.Equal(t, tt.want, decision.Reason)
			assert.Equal(t, tt.want == access.ReasonNone, decision.Authorized)
		})
	}
}

/*
TestGateway_Expired verifies an expired token is an invalid token, not a revoked one.
*/
func TestGateway_Expired(t *testing.T) {
	f := newGatewayFixture(t)
	token := issue(t, f.tokens, identity(7, sec.RoleEditor))

	f.clock.Advance(time.Hour)

	decision := f.gateway.Authenticate(bearer(request(), token))
	assert.Equal(t, access.ReasonInvalidToken, decision.Reason)
	assert.Equal(t, sec.FailureExpired, sec.ReasonOf(decision.Err))
}

/*
TestGateway_Permissions verifies single and any-of permission checks.
*/
func TestGateway_Permissions(t *testing.T) {
	f := newGatewayFixture(t)
	editorToken := issue(t, f.tokens, identity(7, sec.RoleEditor))
	adminToken := issue(t, f.tokens, identity(9, sec.RoleAdmin))

	decision := f.gateway.Authorize(bearer(request(), editorToken), sec.PermBlogDelete)
	assert.False(t, decision.Authorized)
	assert.Equal(t, access.ReasonInsufficientPermission, decision.Reason)
	assert.Equal(t, []sec.Permission{sec.PermBlogDelete}, decision.Required)
	require.NotNil(t, decision.Claims)

	decision = f.gateway.Authorize(bearer(request(), adminToken), sec.PermBlogDelete)
	assert.True(t, decision.Authorized)
	assert.Equal(t, int64(9), decision.Claims.UserID)

	decision = f.gateway.AuthorizeAny(bearer(request(), editorToken), sec.PermBlogDelete, sec.PermBlogUpdate)
	assert.True(t, decision.Authorized)

	decision = f.gateway.AuthorizeAny(bearer(request(), editorToken), sec.PermUsersDelete, sec.PermSettingsUpdate)
	assert.Equal(t, access.ReasonInsufficientPermission, decision.Reason)
}

/*
TestGateway_Ownership verifies editors are owner-gated and higher roles are not.
*/
func TestGateway_Ownership(t *testing.T) {
	f := newGatewayFixture(t)
	editorToken := issue(t, f.tokens, identity(7, sec.RoleEditor))
	adminToken := issue(t, f.tokens, identity(9, sec.RoleAdmin))

	tests := []struct {
		name    string
		token   string
		perm    sec.Permission
		ownerID int64
		want    access.Reason
	}{
		{name: "editor owns", token: editorToken, perm: sec.PermBlogUpdate, ownerID: 7, want: access.ReasonNone},
		{name: "editor does not own", token: editorToken, perm: sec.PermBlogUpdate, ownerID: 8, want: access.ReasonNotOwner},
		{name: "editor lacks permission", token: editorToken, perm: sec.PermBlogDelete, ownerID: 7, want: access.ReasonInsufficientPermission},
		{name: "admin does not own", token: adminToken, perm: sec.PermBlogUpdate, ownerID: 8, want: access.ReasonNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := f.gateway.AuthorizeOwnResource(bearer(request(), tt.token), tt.perm, tt.ownerID)
			assert.Equal(t, tt.want, decision.Reason)
		})
	}
}

/*
TestGateway_AuthorizeResource verifies owner resolution through the collaborator.
*/
func TestGateway_AuthorizeResource(t *testing.T) {
	f := newGatewayFixture(t)
	editorToken := issue(t, f.tokens, identity(7, sec.RoleEditor))

	decision := f.gateway.AuthorizeResource(bearer(request(), editorToken), sec.PermBlogUpdate, "blog", 100)
	assert.True(t, decision.Authorized)

	decision = f.gateway.AuthorizeResource(bearer(request(), editorToken), sec.PermBlogUpdate, "blog", 200)
	assert.Equal(t, access.ReasonNotOwner, decision.Reason)

	decision = f.gateway.AuthorizeResource(bearer(request(), editorToken), sec.PermBlogUpdate, "blog", 999)
	assert.Equal(t, access.ReasonOwnerLookupFailed, decision.Reason)
	assert.ErrorIs(t, decision.Err, access.ErrOwnerNotFound)

	// Anonymous callers never reach the lookup.
	decision = f.gateway.AuthorizeResource(request(), sec.PermBlogUpdate, "blog", 999)
	assert.Equal(t, access.ReasonMissingToken, decision.Reason)
}

/*
TestGateway_SubjectRevocation verifies "log out everywhere" rejects tokens issued before it.
*/
func TestGateway_SubjectRevocation(t *testing.T) {
	f := newGatewayFixture(t)
	oldToken := issue(t, f.tokens, identity(7, sec.RoleEditor))

	f.clock.Advance(time.Minute)
	require.True(t, f.revocations.RevokeSubject(context.Background(), 7, 7*24*time.Hour))

	assert.Equal(t, access.ReasonRevoked, f.gateway.Authenticate(bearer(request(), oldToken)).Reason)

	// A token minted later in the same second is unaffected.
	f.clock.Advance(5 * time.Millisecond)
	newToken := issue(t, f.tokens, identity(7, sec.RoleEditor))
	assert.True(t, f.gateway.Authenticate(bearer(request(), newToken)).Authorized)
}

/*
TestRequire_StatusCodes verifies reasons map to 401/403 and that 401 bodies do not leak the reason.
*/
func TestRequire_StatusCodes(t *testing.T) {
	f := newGatewayFixture(t)
	editorToken := issue(t, f.tokens, identity(7, sec.RoleEditor))
	adminToken := issue(t, f.tokens, identity(9, sec.RoleAdmin))

	expiredToken, err := f.tokens.IssueAccessToken(identity(7, sec.RoleEditor), time.Second)
	require.NoError(t, err)

	revokedToken := issue(t, f.tokens, identity(7, sec.RoleEditor))
	require.True(t, f.revocations.Revoke(context.Background(), revokedToken, time.Hour))

	var seen *sec.Claims
	handler := f.gateway.Require(sec.PermBlogDelete)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ctxutil.GetAuthUser(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	f.clock.Advance(2 * time.Second)

	serve := func(token string) *httptest.ResponseRecorder {
		r := request()
		if token != "" {
			r = bearer(r, token)
		}
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, r)
		return recorder
	}

	// 1. Every credential failure looks the same to the client
	missing, expired, revoked := serve(""), serve(expiredToken), serve(revokedToken)
	for _, recorder := range []*httptest.ResponseRecorder{missing, expired, revoked} {
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Equal(t, missing.Body.String(), recorder.Body.String())
	}

	// 2. Authorization failures name the permission
	forbidden := serve(editorToken)
	assert.Equal(t, http.StatusForbidden, forbidden.Code)

	var body struct {
		Code string         `json:"code"`
		Meta map[string]any `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(forbidden.Body.Bytes(), &body))
	assert.Equal(t, "FORBIDDEN", body.Code)
	assert.Equal(t, []any{"blog:delete"}, body.Meta["required"])

	// 3. Success attaches the claims
	ok := serve(adminToken)
	assert.Equal(t, http.StatusOK, ok.Code)
	require.NotNil(t, seen)
	assert.Equal(t, sec.RoleAdmin, seen.Role)
}

/*
TestScenario_LogoutReplay verifies a token replayed after logout is rejected as revoked, not expired.
*/
func TestScenario_LogoutReplay(t *testing.T) {
	f := newGatewayFixture(t)
	token := issue(t, f.tokens, identity(7, sec.RoleEditor))

	// 1. The token works
	require.True(t, f.gateway.Authorize(bearer(request(), token), sec.PermBlogRead).Authorized)

	// 2. Logout revokes it for its remaining lifetime
	claims, err := f.tokens.Verify(token, sec.KindAccess)
	require.NoError(t, err)
	require.True(t, f.revocations.RevokeClaims(context.Background(), token, claims))

	// 3. Replay is refused with the revoked reason
	decision := f.gateway.Authorize(bearer(request(), token), sec.PermBlogRead)
	assert.False(t, decision.Authorized)
	assert.Equal(t, access.ReasonRevoked, decision.Reason)
	assert.True(t, decision.Reason.Credential())
}

/*
TestScenario_RevokeDuringOutage verifies revocation holds when the networked store refuses connections.
*/
func TestScenario_RevokeDuringOutage(t *testing.T) {
	clock := newManualClock(windowStart)
	tokens := newTokens(t, clock)
	revocations := access.NewRevocationStore(refusedStore(t, clock), nil).WithClock(clock.Now)
	gateway := access.NewGateway(tokens, revocations, nil, nil)

	token := issue(t, tokens, identity(7, sec.RoleAdmin))
	require.True(t, gateway.Authorize(bearer(request(), token), sec.PermBlogDelete).Authorized)

	require.True(t, revocations.Revoke(context.Background(), token, time.Hour))
	assert.Equal(t, access.ReasonRevoked, gateway.Authorize(bearer(request(), token), sec.PermBlogDelete).Reason)
}
