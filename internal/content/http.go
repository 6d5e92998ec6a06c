// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package content

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/studio/internal/access"
	"github.com/taibuivan/studio/internal/audit"
	"github.com/taibuivan/studio/internal/platform/apperr"
	"github.com/taibuivan/studio/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/studio/internal/platform/request"
	"github.com/taibuivan/studio/internal/platform/respond"
	"github.com/taibuivan/studio/internal/platform/sec"
	"github.com/taibuivan/studio/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements the privileged content endpoints.
type Handler struct {
	gateway  *access.Gateway
	csrf     *access.CSRF
	store    Store
	recorder *audit.Recorder
}

// NewHandler constructs a new [Handler].
func NewHandler(gateway *access.Gateway, csrf *access.CSRF, store Store, recorder *audit.Recorder) *Handler {
	return &Handler{gateway: gateway, csrf: csrf, store: store, recorder: recorder}
}

// Routes returns a [chi.Router] with the content routes.
//
// # Endpoints
//   - DELETE /{resource}/{id}        : Requires <resource>:delete.
//   - PATCH  /{resource}/{id}/status : Requires <resource>:update on an owned item.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Delete("/{resource}/{id}", handler.guard(ActionDelete, false, handler.delete))
	router.Patch("/{resource}/{id}/status", handler.guard(ActionUpdate, true, handler.setStatus))

	return router
}

// target is the content item a request addresses.
type target struct {
	resource Resource
	id       int64
}

func parseTarget(request *http.Request) (target, error) {
	resource, ok := ParseResource(requestutil.Param(request, "resource"))
	if !ok {
		return target{}, apperr.NotFound("Resource")
	}

	id, parsed := requestutil.Int64Param(request, "id")
	v := &validate.Validator{}
	if err := v.PositiveID("id", id, parsed).Err(); err != nil {
		return target{}, err
	}

	return target{resource: resource, id: id}, nil
}

// guard authorizes the request, then checks its CSRF token, then calls next.
//
// Authorization runs first so an unauthenticated caller always gets 401
// rather than a CSRF error.
func (handler *Handler) guard(action string, ownership bool, next func(http.ResponseWriter, *http.Request, target)) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		item, err := parseTarget(request)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		permission := item.resource.Permission(action)

		var decision access.Decision
		if ownership {
			decision = handler.gateway.AuthorizeResource(request, permission, string(item.resource), item.id)
		} else {
			decision = handler.gateway.Authorize(request, permission)
		}

		if !decision.Authorized {
			access.WriteDenial(writer, request, decision)
			return
		}

		request = request.WithContext(ctxutil.WithAuthUser(request.Context(), decision.Claims, decision.Token))

		handler.csrf.RequireCSRF(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			next(writer, request, item)
		})).ServeHTTP(writer, request)
	}
}

/*
Delete removes a content item.

DELETE /api/v1/{resource}/{id}

Response:
  - 200: {id, resource, deleted}: Item deleted
  - 401: ErrUnauthorized: Authentication required
  - 403: ErrForbidden: Missing <resource>:delete or CSRF token
  - 404: ErrNotFound: Unknown resource type or item
*/
func (handler *Handler) delete(writer http.ResponseWriter, request *http.Request, item target) {
	if err := handler.store.Delete(request.Context(), item.resource, item.id); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.recorder.Record(request, string(item.resource)+".delete", string(item.resource), item.id, nil)
	respond.OK(writer, map[string]any{
		"id":       item.id,
		"resource": item.resource,
		"deleted":  true,
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

/*
SetStatus moves a content item between draft, published and archived.

PATCH /api/v1/{resource}/{id}/status

Description: Editors may only change their own items. Publishing blog posts
and projects additionally requires the publish permission.

Request:
  - Body: statusRequest (Status)

Response:
  - 200: Item: ID and new status
  - 400: ErrValidation: Unknown status
  - 403: ErrForbidden: Not the owner, missing permission or CSRF token
  - 404: ErrNotFound: Unknown item
*/
func (handler *Handler) setStatus(writer http.ResponseWriter, request *http.Request, item target) {
	var input statusRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	if err := v.OneOf("status", input.Status, StatusDraft, StatusPublished, StatusArchived).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	claims := ctxutil.GetAuthUser(request.Context())
	if input.Status == StatusPublished && item.resource.Publishable() {
		publish := item.resource.Permission(ActionPublish)
		if !sec.HasPermission(claims.Role, publish) {
			access.WriteDenial(writer, request, access.Decision{
				Reason:   access.ReasonInsufficientPermission,
				Claims:   claims,
				Required: []sec.Permission{publish},
			})
			return
		}
	}

	if err := handler.store.SetStatus(request.Context(), item.resource, item.id, input.Status); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.recorder.Record(request, string(item.resource)+".status", string(item.resource), item.id, map[string]any{
		"status": input.Status,
	})

	respond.OK(writer, map[string]any{
		"id":     item.id,
		"status": input.Status,
	})
}
