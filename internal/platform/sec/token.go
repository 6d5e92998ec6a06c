// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives, token management and the
// static permission model.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing, Role
// tables) from the domain logic. Everything here is a pure function of its
// inputs plus the clock: no I/O, no networked state. That makes it safe to run
// inside the edge guard, which cannot reach the store backend.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// # Token Kinds

// TokenKind distinguishes short-lived access tokens from long-lived refresh tokens.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// # Verification Errors

// ErrInvalidToken is the uniform verification failure exposed to callers.
//
// Every [TokenError] matches it via [errors.Is], so HTTP layers never need to
// distinguish an expired token from a forged one.
var ErrInvalidToken = errors.New("sec: invalid token")

// FailureReason is the internal classification of a verification failure.
// It is meant for server-side logs only.
type FailureReason string

const (
	FailureInvalidSignature FailureReason = "invalid_signature"
	FailureExpired          FailureReason = "expired"
	FailureMalformedPayload FailureReason = "malformed_payload"
)

// TokenError describes why a token was rejected.
type TokenError struct {
	Reason FailureReason
	Cause  error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("sec: token rejected (%s): %v", e.Reason, e.Cause)
}

func (e *TokenError) Unwrap() error { return e.Cause }

// Is makes every TokenError match [ErrInvalidToken].
func (e *TokenError) Is(target error) bool { return target == ErrInvalidToken }

// ReasonOf returns the internal failure reason of err, or "" if err is not a [TokenError].
func ReasonOf(err error) FailureReason {
	var tokenErr *TokenError
	if errors.As(err, &tokenErr) {
		return tokenErr.Reason
	}
	return ""
}

// # Claims

// Identity is the subject data embedded in every token.
type Identity struct {
	UserID   int64
	Username string
	Email    string
	Role     Role
}

// Claims represents the payload embedded inside a signed token.
//
// Custom claims are abbreviated to keep the JWT payload small.
type Claims struct {
	jwt.RegisteredClaims

	UserID   int64     `json:"uid"`
	Username string    `json:"unm"`
	Email    string    `json:"eml"`
	Role     Role      `json:"rol"`
	Kind     TokenKind `json:"knd"`

	// IssuedAtMs repeats iat in milliseconds; registered iat has one-second resolution.
	IssuedAtMs int64 `json:"iat_ms,omitempty"`
}

// Identity returns the subject portion of the claims.
func (c *Claims) Identity() Identity {
	return Identity{UserID: c.UserID, Username: c.Username, Email: c.Email, Role: c.Role}
}

// IssuedTime returns the issue instant at the best precision the token carries.
func (c *Claims) IssuedTime() time.Time {
	if c.IssuedAtMs > 0 {
		return time.UnixMilli(c.IssuedAtMs)
	}
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// RemainingTTL returns how long the token stays valid after now.
func (c *Claims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}

// Validate implements [jwt.ClaimsValidator]. The parser calls it after the
// registered claims pass, so a well-signed token with a missing field is
// still rejected.
func (c *Claims) Validate() error {
	switch {
	case c.UserID <= 0:
		return errors.New("missing subject id")
	case c.Username == "":
		return errors.New("missing username")
	case c.Email == "":
		return errors.New("missing email")
	case !c.Role.Valid():
		return fmt.Errorf("unknown role %q", c.Role)
	case c.Kind != KindAccess && c.Kind != KindRefresh:
		return fmt.Errorf("unknown token kind %q", c.Kind)
	case c.IssuedAt == nil:
		return errors.New("missing issued-at")
	}
	return nil
}

// # Token Service

// TokenService issues and verifies HMAC-signed tokens.
//
// Access and refresh tokens are signed with independent secrets, so a payload
// signed for one kind never verifies as the other.
type TokenService struct {
	secrets map[TokenKind][]byte
	ttls    map[TokenKind]time.Duration
	issuer  string
	now     func() time.Time
}

// TokenConfig holds the secrets and default lifetimes of a [TokenService].
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// NewTokenService creates a new TokenService.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("sec: access and refresh secrets are required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("sec: token lifetimes must be positive")
	}

	return &TokenService{
		secrets: map[TokenKind][]byte{
			KindAccess:  []byte(cfg.AccessSecret),
			KindRefresh: []byte(cfg.RefreshSecret),
		},
		ttls: map[TokenKind]time.Duration{
			KindAccess:  cfg.AccessTTL,
			KindRefresh: cfg.RefreshTTL,
		},
		issuer: cfg.Issuer,
		now:    time.Now,
	}, nil
}

// WithClock returns a copy of the service reading time from now. Used by tests.
func (service *TokenService) WithClock(now func() time.Time) *TokenService {
	clone := *service
	clone.now = now
	return &clone
}

// TTL returns the default lifetime for kind.
func (service *TokenService) TTL(kind TokenKind) time.Duration {
	return service.ttls[kind]
}

// IssueAccessToken signs a short-lived access token. A zero ttl uses the configured default.
func (service *TokenService) IssueAccessToken(identity Identity, ttl time.Duration) (string, error) {
	return service.issue(KindAccess, identity, ttl)
}

// IssueRefreshToken signs a long-lived refresh token. A zero ttl uses the configured default.
func (service *TokenService) IssueRefreshToken(identity Identity, ttl time.Duration) (string, error) {
	return service.issue(KindRefresh, identity, ttl)
}

// TokenPair is the result of a login or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// IssuePair signs both tokens with their default lifetimes.
func (service *TokenService) IssuePair(identity Identity) (*TokenPair, error) {
	now := service.now()

	access, err := service.IssueAccessToken(identity, 0)
	if err != nil {
		return nil, err
	}

	refresh, err := service.IssueRefreshToken(identity, 0)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(service.ttls[KindAccess]),
		RefreshExpiresAt: now.Add(service.ttls[KindRefresh]),
	}, nil
}

func (service *TokenService) issue(kind TokenKind, identity Identity, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = service.ttls[kind]
	}

	currentTime := service.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			// A unique ID keeps two tokens minted in the same second distinct,
			// so revoking one never revokes the other.
			ID:        uuid.NewString(),
			Subject:   fmt.Sprintf("%d", identity.UserID),
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(ttl)),
		},
		UserID:     identity.UserID,
		Username:   identity.Username,
		Email:      identity.Email,
		Role:       identity.Role,
		Kind:       kind,
		IssuedAtMs: currentTime.UnixMilli(),
	}

	if err := claims.Validate(); err != nil {
		return "", fmt.Errorf("sec: refusing to sign %s token: %w", kind, err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secrets[kind])
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign %s token: %w", kind, err)
	}

	return signedToken, nil
}

// Verify checks the signature, expiry and every claim of a token of the given kind.
//
// On failure it returns a [*TokenError] that matches [ErrInvalidToken].
func (service *TokenService) Verify(tokenString string, kind TokenKind) (*Claims, error) {
	secret, ok := service.secrets[kind]
	if !ok {
		return nil, &TokenError{Reason: FailureMalformedPayload, Cause: fmt.Errorf("unknown token kind %q", kind)}
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(service.now),
	}
	if service.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(service.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, parserOptions...)

	if err != nil {
		return nil, &TokenError{Reason: classify(err), Cause: err}
	}

	if !token.Valid {
		return nil, &TokenError{Reason: FailureInvalidSignature, Cause: errors.New("token not valid")}
	}

	if claims.Kind != kind {
		return nil, &TokenError{Reason: FailureMalformedPayload, Cause: fmt.Errorf("token kind mismatch: %s", claims.Kind)}
	}

	return claims, nil
}

// classify maps jwt parser errors onto the internal failure taxonomy.
func classify(err error) FailureReason {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return FailureExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return FailureInvalidSignature
	default:
		return FailureMalformedPayload
	}
}
