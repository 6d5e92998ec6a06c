// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements sign-in for the back-office.

It turns a username/password into an access/refresh token pair, rotates
refresh tokens, and ends sessions by revoking the tokens that carry them.

Architecture:

  - Service: Orchestrates the credential checks and token lifecycle.
  - Repository: [UserRepository] abstracts account lookups (Postgres in production).
  - Security: bcrypt password hashes, HMAC-signed tokens and the revocation blacklist.
*/
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/taibuivan/studio/internal/access"
	"github.com/taibuivan/studio/internal/platform/apperr"
	"github.com/taibuivan/studio/internal/platform/ctxutil"
	"github.com/taibuivan/studio/internal/platform/sec"
)

var (
	// errInvalidCredentials is deliberately identical for unknown accounts,
	// wrong passwords and disabled accounts.
	errInvalidCredentials = apperr.Unauthorized("Invalid login credentials")

	errInvalidRefresh = apperr.Unauthorized("Invalid or expired refresh token")
)

// timingHash is compared against when the account does not exist, so an
// unknown login costs the same bcrypt work as a wrong password.
var timingHash = sync.OnceValue(func() string {
	hash, _ := sec.HashPassword("studio-unknown-account")
	return hash
})

// Service implements user authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, token
// issuance or revocation must be reviewed together with the access package.
type Service struct {
	users       UserRepository
	tokens      *sec.TokenService
	revocations *access.RevocationStore
	now         func() time.Time
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(users UserRepository, tokens *sec.TokenService, revocations *access.RevocationStore) *Service {
	return &Service{
		users:       users,
		tokens:      tokens,
		revocations: revocations,
		now:         time.Now,
	}
}

// # Login Flow

// LoginInput represents the data required to authenticate a user.
type LoginInput struct {
	Login    string
	Password string
}

// Session is the result of a successful login or refresh.
type Session struct {
	User   *User
	Tokens *sec.TokenPair
}

/*
Login validates credentials and issues a new token pair.

Parameters:
  - ctx: context.Context
  - input: LoginInput (Username or email, plus password)

Returns:
  - *Session: The account and its freshly signed tokens
  - error: errInvalidCredentials for any credential mismatch
*/
func (service *Service) Login(ctx context.Context, input LoginInput) (*Session, error) {
	user, err := service.users.FindByLogin(ctx, input.Login)
	if err != nil {
		if isNotFound(err) {
			sec.CheckPasswordHash(input.Password, timingHash())
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) || !user.IsActive {
		return nil, errInvalidCredentials
	}

	pair, err := service.tokens.IssuePair(user.Identity())
	if err != nil {
		return nil, apperr.Internal(err)
	}

	// Losing the timestamp must not fail an otherwise valid login.
	if err := service.users.TouchLastLogin(ctx, user.ID, service.now()); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "last_login_update_failed",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "user_logged_in",
		slog.Int64("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	return &Session{User: user, Tokens: pair}, nil
}

// # Session Lifecycle

/*
Refresh exchanges a refresh token for a new token pair.

Description: Refresh tokens are single use. The presented token is revoked
before the new pair is issued, so replaying it fails. The account is reloaded
so role changes and deactivation take effect on the next refresh.

Returns:
  - *Session: The account and its rotated tokens
  - error: errInvalidRefresh when the token is unusable
*/
func (service *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := service.tokens.Verify(refreshToken, sec.KindRefresh)
	if err != nil {
		ctxutil.GetLogger(ctx).InfoContext(ctx, "refresh_rejected",
			slog.String("token_failure", string(sec.ReasonOf(err))),
		)
		return nil, errInvalidRefresh
	}

	if service.revocations.IsRevoked(ctx, refreshToken) ||
		service.revocations.IsSubjectRevoked(ctx, claims.UserID, claims.IssuedTime()) {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "revoked_refresh_presented",
			slog.Int64("user_id", claims.UserID),
		)
		return nil, errInvalidRefresh
	}

	user, err := service.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, errInvalidRefresh
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, errInvalidRefresh
	}

	if !service.revocations.RevokeClaims(ctx, refreshToken, claims) {
		return nil, apperr.ServiceUnavailable("Session store unavailable")
	}

	pair, err := service.tokens.IssuePair(user.Identity())
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return &Session{User: user, Tokens: pair}, nil
}

/*
Logout revokes the access token of the current request and, when presented,
the refresh token of the same account.

Parameters:
  - ctx: context.Context
  - accessToken: string (Already verified by the gateway)
  - accessClaims: *sec.Claims
  - refreshToken: string (Optional)
*/
func (service *Service) Logout(ctx context.Context, accessToken string, accessClaims *sec.Claims, refreshToken string) error {
	if !service.revocations.RevokeClaims(ctx, accessToken, accessClaims) {
		return apperr.ServiceUnavailable("Session store unavailable")
	}

	if refreshToken != "" {
		refreshClaims, err := service.tokens.Verify(refreshToken, sec.KindRefresh)
		if err == nil && refreshClaims.UserID == accessClaims.UserID {
			service.revocations.RevokeClaims(ctx, refreshToken, refreshClaims)
		}
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "user_logged_out", slog.Int64("user_id", accessClaims.UserID))
	return nil
}

/*
LogoutAll revokes every token of the account issued up to now, on every device.
*/
func (service *Service) LogoutAll(ctx context.Context, userID int64) error {
	if !service.revocations.RevokeSubject(ctx, userID, service.tokens.TTL(sec.KindRefresh)) {
		return apperr.ServiceUnavailable("Session store unavailable")
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "user_logged_out_everywhere", slog.Int64("user_id", userID))
	return nil
}

// Me returns the account behind an authenticated request.
func (service *Service) Me(ctx context.Context, userID int64) (*User, error) {
	return service.users.FindByID(ctx, userID)
}

func isNotFound(err error) bool {
	appError := apperr.As(err)
	return appError != nil && appError.HTTPStatus == http.StatusNotFound
}
