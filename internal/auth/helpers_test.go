// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/studio/internal/access"
	"github.com/taibuivan/studio/internal/auth"
	"github.com/taibuivan/studio/internal/platform/apperr"
	"github.com/taibuivan/studio/internal/platform/constants"
	"github.com/taibuivan/studio/internal/platform/kvstore"
	"github.com/taibuivan/studio/internal/platform/middleware"
	"github.com/taibuivan/studio/internal/platform/respond"
	"github.com/taibuivan/studio/internal/platform/sec"
)

const testPassword = "correct horse battery staple"

// sessionStart is aligned on a 30-minute boundary.
var sessionStart = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// # Fake Repository

type fakeUsers struct {
	mu      sync.Mutex
	byID    map[int64]*auth.User
	touched map[int64]time.Time
}

func newFakeUsers(t *testing.T) *fakeUsers {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	users := &fakeUsers{byID: map[int64]*auth.User{}, touched: map[int64]time.Time{}}
	for _, user := range []*auth.User{
		{ID: 1, Username: "root", Email: "root@studio.test", Role: sec.RoleSuperAdmin, IsActive: true},
		{ID: 2, Username: "admin", Email: "admin@studio.test", Role: sec.RoleAdmin, IsActive: true},
		{ID: 3, Username: "editor", Email: "editor@studio.test", Role: sec.RoleEditor, IsActive: true},
		{ID: 4, Username: "former", Email: "former@studio.test", Role: sec.RoleEditor, IsActive: false},
	} {
		user.PasswordHash = string(hash)
		users.byID[user.ID] = user
	}
	return users
}

func (f *fakeUsers) FindByLogin(_ context.Context, login string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	login = strings.TrimSpace(login)
	for _, user := range f.byID {
		if strings.EqualFold(user.Username, login) || strings.EqualFold(user.Email, login) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (f *fakeUsers) FindByID(_ context.Context, id int64) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	clone := *user
	return &clone, nil
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[id] = at
	return nil
}

func (f *fakeUsers) setRole(id int64, role sec.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id].Role = role
}

// # Fixture

type fixture struct {
	router http.Handler
	clock  *manualClock
	users  *fakeUsers
}

// trustedProxies is the reverse proxy range of the test router.
var trustedProxies = []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &manualClock{now: sessionStart}
	store := kvstore.NewMemoryStore(kvstore.MemoryConfig{Now: clock.Now})
	t.Cleanup(func() { _ = store.Close() })

	tokens, err := sec.NewTokenService(sec.TokenConfig{
		AccessSecret:  "access-secret-for-tests-0123456789abcdef",
		RefreshSecret: "refresh-secret-for-tests-0123456789abcdef",
		AccessTTL:     time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "studio.test",
	})
	require.NoError(t, err)
	tokens = tokens.WithClock(clock.Now)

	revocations := access.NewRevocationStore(store, nil).WithClock(clock.Now)
	limiter := access.NewRateLimiter(store, nil).WithClock(clock.Now)
	gateway := access.NewGateway(tokens, revocations, nil, nil)
	csrf := access.NewCSRF(access.NewSessionStore(store), time.Hour, false)

	users := newFakeUsers(t)
	handler := auth.NewHandler(auth.NewService(users, tokens, revocations), auth.HandlerConfig{
		Gateway: gateway,
		Limiter: limiter,
		LoginPolicy: access.Policy{
			Scope:         "login",
			Limit:         5,
			Window:        30 * time.Minute,
			BlockAfter:    3,
			BlockDuration: time.Hour,
		},
		CSRF: csrf,
	})

	router := chi.NewRouter()
	router.Use(middleware.ClientIP(trustedProxies))
	router.Route("/api/v1", func(api chi.Router) {
		api.Mount("/auth", handler.Routes())
		api.With(gateway.Require(sec.PermBlogDelete)).Delete("/blog/{id}", func(writer http.ResponseWriter, _ *http.Request) {
			respond.OK(writer, map[string]bool{"deleted": true})
		})
	})

	return &fixture{router: router, clock: clock, users: users}
}

// # Request Helpers

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Code  string          `json:"code"`
	Meta  map[string]any  `json:"meta"`
}

type loginData struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        auth.Profile `json:"user"`
}

func (f *fixture) do(t *testing.T, request *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, request)
	return recorder
}

func jsonRequest(method, target string, body any) *http.Request {
	payload, _ := json.Marshal(body)
	request := httptest.NewRequest(method, target, bytes.NewReader(payload))
	request.Header.Set("Content-Type", "application/json")
	return request
}

func withBearer(request *http.Request, token string) *http.Request {
	request.Header.Set(constants.HeaderAuthorization, "Bearer "+token)
	return request
}

func decode(t *testing.T, recorder *httptest.ResponseRecorder) envelope {
	t.Helper()

	var body envelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func cookieNamed(recorder *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

// session is what a client keeps after logging in.
type session struct {
	access  string
	refresh string
	profile auth.Profile
}

func (f *fixture) login(t *testing.T, login string) session {
	t.Helper()

	recorder := f.do(t, jsonRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"login":    login,
		"password": testPassword,
	}))
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var data loginData
	require.NoError(t, json.Unmarshal(decode(t, recorder).Data, &data))

	refresh := cookieNamed(recorder, constants.RefreshTokenCookieName)
	require.NotNil(t, refresh)

	return session{access: data.AccessToken, refresh: refresh.Value, profile: data.User}
}
