// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package access is the request-time access-control layer.

It composes the token service, the permission model and the networked stores
into the checks every protected operation passes through.

Components:

  - [Gateway]: Token, revocation and permission checks with a machine-readable [Reason].
  - [RevocationStore]: Blacklist of tokens revoked before expiry.
  - [RateLimiter]: Fixed-window counters with an optional extended block.
  - [SessionStore], [CacheStore]: JSON values with a TTL.
  - [CSRF]: Double-submit token guard for cookie-authenticated mutations.

All stores share one [kvstore.Backend] and inherit its fallback behavior.
*/
package access

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/taibuivan/studio/internal/platform/constants"
	"github.com/taibuivan/studio/internal/platform/metrics"
	"github.com/taibuivan/studio/internal/platform/sec"
)

// # Decisions

// Reason is the machine-readable cause of a denial.
type Reason string

const (
	ReasonNone                   Reason = ""
	ReasonMissingToken           Reason = "missing_token"
	ReasonInvalidToken           Reason = "invalid_token"
	ReasonRevoked                Reason = "revoked"
	ReasonInsufficientPermission Reason = "insufficient_permission"
	ReasonNotOwner               Reason = "not_owner"
	ReasonOwnerLookupFailed      Reason = "owner_lookup_failed"
)

// Credential reports whether the reason is an authentication failure (401)
// rather than an authorization failure (403).
func (r Reason) Credential() bool {
	switch r {
	case ReasonMissingToken, ReasonInvalidToken, ReasonRevoked:
		return true
	default:
		return false
	}
}

// Decision is the outcome of a gateway check.
type Decision struct {
	Authorized bool
	Reason     Reason

	// Claims and Token are set once the token has been verified, even when
	// a later step denies the request.
	Claims *sec.Claims
	Token  string

	// Required lists the permissions that were checked.
	Required []sec.Permission

	// Err carries the underlying failure for logs (token error, lookup error).
	Err error
}

func allow(claims *sec.Claims, token string, required []sec.Permission) Decision {
	return Decision{Authorized: true, Claims: claims, Token: token, Required: required}
}

func deny(reason Reason, err error) Decision {
	return Decision{Reason: reason, Err: err}
}

// # Collaborators

// ErrOwnerNotFound is returned by an [OwnerResolver] for an unknown resource.
var ErrOwnerNotFound = errors.New("access: resource not found")

// OwnerResolver returns the id of the account that created a resource.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context, resourceType string, resourceID int64) (int64, error)
}

// # Gateway

// Gateway answers whether a request may perform an action.
//
// Checks run in order and stop at the first failure: token presence, token
// validity, revocation, then permission and ownership.
type Gateway struct {
	tokens      *sec.TokenService
	revocations *RevocationStore
	owners      OwnerResolver
	metrics     *metrics.Metrics
}

// NewGateway creates a gateway. owners may be nil when no route needs ownership lookups.
func NewGateway(tokens *sec.TokenService, revocations *RevocationStore, owners OwnerResolver, m *metrics.Metrics) *Gateway {
	return &Gateway{tokens: tokens, revocations: revocations, owners: owners, metrics: m}
}

// BearerToken extracts the access token of a request.
//
// The Authorization header is authoritative; the access cookie is used only
// when the header is absent. A header that is present but not a bearer
// credential yields present=true with an empty token.
func BearerToken(request *http.Request) (token string, present bool) {
	if header := request.Header.Get(constants.HeaderAuthorization); header != "" {
		scheme, value, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			return "", true
		}
		return strings.TrimSpace(value), true
	}

	if cookie, err := request.Cookie(constants.AccessTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	return "", false
}

// Authenticate runs the credential steps only: presence, validity, revocation.
func (gateway *Gateway) Authenticate(request *http.Request) Decision {
	return gateway.record(gateway.authenticate(request))
}

func (gateway *Gateway) authenticate(request *http.Request) Decision {
	token, present := BearerToken(request)
	if !present {
		return deny(ReasonMissingToken, nil)
	}
	if token == "" {
		return deny(ReasonInvalidToken, errors.New("malformed authorization header"))
	}

	claims, err := gateway.tokens.Verify(token, sec.KindAccess)
	if err != nil {
		return deny(ReasonInvalidToken, err)
	}

	ctx := request.Context()
	if gateway.revocations.IsRevoked(ctx, token) ||
		gateway.revocations.IsSubjectRevoked(ctx, claims.UserID, claims.IssuedTime()) {
		decision := deny(ReasonRevoked, nil)
		decision.Claims = claims
		return decision
	}

	return allow(claims, token, nil)
}

// Authorize requires permission.
func (gateway *Gateway) Authorize(request *http.Request, permission sec.Permission) Decision {
	return gateway.AuthorizeAny(request, permission)
}

// AuthorizeAny requires at least one of permissions.
func (gateway *Gateway) AuthorizeAny(request *http.Request, permissions ...sec.Permission) Decision {
	return gateway.record(checkPermissions(gateway.authenticate(request), permissions))
}

// AuthorizeOwnResource requires permission on a resource created by ownerID.
// Editors must own it; higher roles need only the permission.
func (gateway *Gateway) AuthorizeOwnResource(request *http.Request, permission sec.Permission, ownerID int64) Decision {
	decision := checkPermissions(gateway.authenticate(request), []sec.Permission{permission})
	return gateway.record(checkOwnership(decision, permission, ownerID))
}

// AuthorizeResource resolves the owner of (resourceType, resourceID) and
// applies the same rule as [Gateway.AuthorizeOwnResource].
//
// The owner is looked up only after the credential and permission steps pass,
// so callers without the permission cannot probe which resources exist.
func (gateway *Gateway) AuthorizeResource(request *http.Request, permission sec.Permission, resourceType string, resourceID int64) Decision {
	decision := checkPermissions(gateway.authenticate(request), []sec.Permission{permission})
	if !decision.Authorized {
		return gateway.record(decision)
	}

	if gateway.owners == nil {
		return gateway.record(refuse(decision, ReasonOwnerLookupFailed, errors.New("access: no owner resolver configured")))
	}

	ownerID, err := gateway.owners.ResolveOwner(request.Context(), resourceType, resourceID)
	if err != nil {
		return gateway.record(refuse(decision, ReasonOwnerLookupFailed, err))
	}

	return gateway.record(checkOwnership(decision, permission, ownerID))
}

func checkPermissions(decision Decision, permissions []sec.Permission) Decision {
	decision.Required = permissions
	if !decision.Authorized {
		return decision
	}

	for _, permission := range permissions {
		if sec.HasPermission(decision.Claims.Role, permission) {
			return decision
		}
	}
	return refuse(decision, ReasonInsufficientPermission, nil)
}

func checkOwnership(decision Decision, permission sec.Permission, ownerID int64) Decision {
	if !decision.Authorized {
		return decision
	}

	claims := decision.Claims
	if !sec.CanEditOwnResource(claims.Role, ownerID, claims.UserID, permission) {
		return refuse(decision, ReasonNotOwner, nil)
	}
	return decision
}

// refuse turns a verified decision into a denial, keeping the claims for logs.
func refuse(decision Decision, reason Reason, err error) Decision {
	decision.Authorized = false
	decision.Reason = reason
	decision.Err = err
	return decision
}

func (gateway *Gateway) record(decision Decision) Decision {
	if decision.Authorized {
		gateway.metrics.AuthzDecision("allowed")
	} else {
		gateway.metrics.AuthzDecision(string(decision.Reason))
	}
	return decision
}
