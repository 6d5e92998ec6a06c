// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/studio/internal/platform/constants"
	"github.com/taibuivan/studio/internal/platform/ctxutil"
	"github.com/taibuivan/studio/internal/platform/middleware"
)

type corsConfig struct {
	development bool
	origins     []string
}

func (c corsConfig) IsDevelopment() bool   { return c.development }
func (c corsConfig) CORSOrigins() []string { return c.origins }

/*
TestRequestID verifies an ID is generated when absent and echoed when supplied.
*/
func TestRequestID(t *testing.T) {
	var seen string
	handler := middleware.RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ctxutil.GetRequestID(r.Context())
	}))

	// 1. Generated
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, recorder.Header().Get(constants.HeaderXRequestID))

	// 2. Propagated
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set(constants.HeaderXRequestID, "abc-123")
	handler.ServeHTTP(httptest.NewRecorder(), request)
	assert.Equal(t, "abc-123", seen)
}

/*
TestStructuredLogger verifies the final log line carries status and forwarded user id.
*/
func TestStructuredLogger(t *testing.T) {
	var buffer bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buffer, nil))

	handler := middleware.StructuredLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEqual(t, slog.Default(), ctxutil.GetLogger(r.Context()))
		w.WriteHeader(http.StatusForbidden)
	}))

	request := httptest.NewRequest(http.MethodGet, "/admin", nil)
	request.Header.Set(constants.HeaderXUserID, "7")
	handler.ServeHTTP(httptest.NewRecorder(), request)

	output := buffer.String()
	assert.Contains(t, output, `"msg":"http_request_finished"`)
	assert.Contains(t, output, `"status":403`)
	assert.Contains(t, output, `"user_id":"7"`)
	assert.Contains(t, output, `"level":"WARN"`)
}

/*
TestPanicRecovery verifies a panic becomes a JSON 500.
*/
func TestPanicRecovery(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	handler := middleware.PanicRecovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	recorder := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "INTERNAL_ERROR")
}

/*
TestCORS verifies production only reflects listed origins.
*/
func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		name    string
		cfg     corsConfig
		origin  string
		allowed bool
	}{
		{name: "development allows any", cfg: corsConfig{development: true}, origin: "http://localhost:3000", allowed: true},
		{name: "production listed", cfg: corsConfig{origins: []string{"https://studio.dev"}}, origin: "https://studio.dev", allowed: true},
		{name: "production unlisted", cfg: corsConfig{origins: []string{"https://studio.dev"}}, origin: "https://evil.example", allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/", nil)
			request.Header.Set(constants.HeaderOrigin, tt.origin)

			recorder := httptest.NewRecorder()
			middleware.CORS(tt.cfg)(next).ServeHTTP(recorder, request)

			if tt.allowed {
				assert.Equal(t, tt.origin, recorder.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

/*
TestResolveClientIP verifies forwarding headers count only when the peer is a trusted proxy.
*/
func TestResolveClientIP(t *testing.T) {
	trusted := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("fd00::/8"),
	}

	tests := []struct {
		name      string
		remote    string
		forwarded string
		realIP    string
		want      string
	}{
		{name: "direct peer", remote: "203.0.113.9:5555", want: "203.0.113.9"},
		{name: "untrusted peer spoofs forwarded", remote: "203.0.113.9:5555", forwarded: "198.51.100.1", want: "203.0.113.9"},
		{name: "untrusted peer spoofs real ip", remote: "203.0.113.9:5555", realIP: "198.51.100.1", want: "203.0.113.9"},
		{name: "trusted proxy", remote: "10.0.0.1:443", forwarded: "198.51.100.1", want: "198.51.100.1"},
		{name: "client-prepended hop ignored", remote: "10.0.0.1:443", forwarded: "1.2.3.4, 198.51.100.1, 10.0.0.2", want: "198.51.100.1"},
		{name: "all hops trusted", remote: "10.0.0.1:443", forwarded: "10.0.0.3, 10.0.0.2", want: "10.0.0.3"},
		{name: "malformed hop", remote: "10.0.0.1:443", forwarded: "198.51.100.1, junk", want: "10.0.0.1"},
		{name: "trusted proxy real ip", remote: "10.0.0.1:443", realIP: "198.51.100.2", want: "198.51.100.2"},
		{name: "ipv6 trusted proxy", remote: "[fd00::1]:443", forwarded: "2001:db8::7", want: "2001:db8::7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/", nil)
			request.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				request.Header.Set(constants.HeaderXForwardedFor, tt.forwarded)
			}
			if tt.realIP != "" {
				request.Header.Set(constants.HeaderXRealIP, tt.realIP)
			}

			assert.Equal(t, tt.want, middleware.ResolveClientIP(request, trusted))
		})
	}
}

/*
TestRealIP verifies the resolved address is stored once and headers are never read without it.
*/
func TestRealIP(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.RemoteAddr = "10.0.0.1:5555"
	request.Header.Set(constants.HeaderXForwardedFor, "198.51.100.1")

	// 1. Without the middleware only the socket address counts
	assert.Equal(t, "10.0.0.1", middleware.RealIP(request))

	// 2. Behind ClientIP the trusted forwarding header is honored
	var seen string
	handler := middleware.ClientIP([]netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = middleware.RealIP(r)
		}),
	)
	handler.ServeHTTP(httptest.NewRecorder(), request)
	assert.Equal(t, "198.51.100.1", seen)
}
