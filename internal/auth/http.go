// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/studio/internal/access"
	"github.com/taibuivan/studio/internal/platform/apperr"
	"github.com/taibuivan/studio/internal/platform/constants"
	"github.com/taibuivan/studio/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/studio/internal/platform/request"
	"github.com/taibuivan/studio/internal/platform/respond"
	"github.com/taibuivan/studio/internal/platform/sec"
	"github.com/taibuivan/studio/internal/platform/validate"
)

// # Definitions & Constructors

// HandlerConfig carries the collaborators of the authentication endpoints.
type HandlerConfig struct {
	Gateway     *access.Gateway
	Limiter     *access.RateLimiter
	LoginPolicy access.Policy
	CSRF        *access.CSRF

	// SecureCookies marks every cookie Secure. Disabled only for plain-HTTP development.
	SecureCookies bool
}

// Handler implements authentication-related HTTP endpoints.
type Handler struct {
	authService *Service
	config      HandlerConfig
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service, config HandlerConfig) *Handler {
	return &Handler{authService: service, config: config}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /login      : Authenticates and returns a token pair (rate limited).
//   - POST /refresh    : Rotates the refresh token.
//   - GET  /csrf       : Issues a CSRF token.
//   - POST /logout     : Revokes the current tokens.
//   - POST /logout-all : Revokes every token of the account.
//   - GET  /me         : Returns the signed-in account.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Get("/csrf", handler.csrfToken)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(handler.config.Gateway.RequireAuth)
		r.Post("/logout", handler.logout)
		r.Post("/logout-all", handler.logoutAll)
		r.Get("/me", handler.me)
	})

	return router
}

// # Request Payloads

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

/*
Login authenticates a user and issues a token pair.

POST /api/v1/auth/login

Description: Attempts are limited per client address and login. Repeated
violations block the pair for a longer period. A successful login clears
the counter.

Request:
  - Body: loginRequest (Login, Password)

Response:
  - 200: LoginResponse: Access token and account profile
  - 400: ErrInvalidJSON: Missing fields
  - 401: ErrUnauthorized: Invalid credentials
  - 429: ErrRateLimited: Too many attempts
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	v.Required(FieldLogin, input.Login).
		MaxLen(FieldLogin, input.Login, MaxLoginLength).
		Required(FieldPassword, input.Password).
		MaxLen(FieldPassword, input.Password, MaxPasswordLength)

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	limiter := handler.config.Limiter
	policy := handler.config.LoginPolicy
	limitKey := loginLimitKey(request, input.Login)

	result := limiter.Enforce(request.Context(), policy, limitKey)
	if !limiter.WriteResult(writer, request, result) {
		return
	}

	session, err := handler.authService.Login(request.Context(), LoginInput{
		Login:    input.Login,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	limiter.Reset(request.Context(), policy.Scope, limitKey)
	handler.writeSession(writer, session)
}

/*
Refresh issues a new token pair using a valid refresh token.

POST /api/v1/auth/refresh

Description: The refresh token is read from its cookie, or from the body
for clients that do not keep cookies. The presented token is revoked.

Response:
  - 200: LoginResponse: New access token credentials
  - 401: ErrUnauthorized: Missing, revoked or invalid refresh token
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	refreshToken := ""
	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil {
		refreshToken = cookie.Value
	}

	if refreshToken == "" {
		var input refreshRequest
		if err := requestutil.DecodeJSON(request, &input); err == nil {
			refreshToken = strings.TrimSpace(input.RefreshToken)
		}
	}

	if refreshToken == "" {
		respond.Error(writer, request, apperr.Unauthorized("Missing refresh token"))
		return
	}

	session, err := handler.authService.Refresh(request.Context(), refreshToken)
	if err != nil {
		handler.clearCookies(writer)
		respond.Error(writer, request, err)
		return
	}

	handler.writeSession(writer, session)
}

/*
CSRFToken issues a token for state-changing requests.

GET /api/v1/auth/csrf

Response:
  - 200: Token, also set as a script-readable cookie
*/
func (handler *Handler) csrfToken(writer http.ResponseWriter, request *http.Request) {
	token, err := handler.config.CSRF.Issue(request.Context(), writer)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{FieldCSRFToken: token})
}

/*
Logout terminates the current session.

POST /api/v1/auth/logout

Description: Revokes the access token used for this request and the refresh
token cookie (if present), then clears the security cookies.

Response:
  - 204: No Content: Session terminated
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	refreshToken := ""
	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil {
		refreshToken = cookie.Value
	}

	accessToken := ctxutil.GetAccessToken(request.Context())
	if err := handler.authService.Logout(request.Context(), accessToken, claims, refreshToken); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.config.CSRF.Revoke(request)
	handler.clearCookies(writer)
	respond.NoContent(writer)
}

/*
LogoutAll terminates every session of the signed-in account.

POST /api/v1/auth/logout-all

Response:
  - 204: No Content: Every token issued so far is revoked
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) logoutAll(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.LogoutAll(request.Context(), claims.UserID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.config.CSRF.Revoke(request)
	handler.clearCookies(writer)
	respond.NoContent(writer)
}

/*
Me returns the signed-in account.

GET /api/v1/auth/me

Response:
  - 200: Profile: Account and effective permissions
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.Me(request.Context(), claims.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user.Profile())
}

// # Cookies & Responses

func (handler *Handler) writeSession(writer http.ResponseWriter, session *Session) {
	tokens := session.Tokens

	http.SetCookie(writer, &http.Cookie{
		Name:     constants.AccessTokenCookieName,
		Value:    tokens.AccessToken,
		Path:     "/",
		Expires:  tokens.AccessExpiresAt,
		Secure:   handler.config.SecureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    tokens.RefreshToken,
		Path:     constants.RefreshTokenCookiePath,
		Expires:  tokens.RefreshExpiresAt,
		Secure:   handler.config.SecureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	respond.OK(writer, map[string]any{
		FieldAccessToken: tokens.AccessToken,
		FieldTokenType:   TokenTypeBearer,
		FieldExpiresIn:   int64(handler.authService.tokens.TTL(sec.KindAccess) / time.Second),
		FieldUser:        session.User.Profile(),
	})
}

func (handler *Handler) clearCookies(writer http.ResponseWriter) {
	for _, cookie := range []struct{ name, path string }{
		{constants.AccessTokenCookieName, "/"},
		{constants.RefreshTokenCookieName, constants.RefreshTokenCookiePath},
	} {
		http.SetCookie(writer, &http.Cookie{
			Name:     cookie.name,
			Value:    "",
			Path:     cookie.path,
			MaxAge:   -1,
			Secure:   handler.config.SecureCookies,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// loginLimitKey scopes login attempts to the pair of client address and login.
func loginLimitKey(request *http.Request, login string) string {
	return access.ByIP(request) + "|" + sec.HashToken(strings.ToLower(strings.TrimSpace(login)))
}
