// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package audit records who changed what.

Handlers call [Recorder.Record] after a privileged change succeeds. The
entry is enriched from the request (actor, client address, user agent,
request ID) and appended to a [Sink].

Recording never fails the request: a sink error is logged and dropped.
*/
package audit

import (
	"context"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/taibuivan/studio/internal/platform/ctxutil"
	"github.com/taibuivan/studio/internal/platform/middleware"
)

// appendTimeout bounds a single sink write.
const appendTimeout = 2 * time.Second

// Entry is one audit record.
type Entry struct {
	ActorID      int64
	Action       string
	ResourceType string
	ResourceID   int64
	Detail       map[string]any
	ClientIP     string
	UserAgent    string
	RequestID    string
	OccurredAt   time.Time
}

// Sink persists audit entries.
type Sink interface {
	Append(ctx context.Context, entry *Entry) error
}

// Recorder enriches and writes audit entries.
type Recorder struct {
	sink Sink
	now  func() time.Time
}

// NewRecorder creates a recorder writing to sink.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink, now: time.Now}
}

// Record appends an entry for action on the given resource.
func (recorder *Recorder) Record(request *http.Request, action, resourceType string, resourceID int64, detail map[string]any) {
	ctx := request.Context()

	entry := &Entry{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Detail:       maps.Clone(detail),
		ClientIP:     middleware.RealIP(request),
		UserAgent:    request.UserAgent(),
		RequestID:    ctxutil.GetRequestID(ctx),
		OccurredAt:   recorder.now().UTC(),
	}
	if claims := ctxutil.GetAuthUser(ctx); claims != nil {
		entry.ActorID = claims.UserID
	}

	logger := ctxutil.GetLogger(ctx)
	logger.InfoContext(ctx, "audit_event",
		slog.String("action", entry.Action),
		slog.String("resource_type", entry.ResourceType),
		slog.Int64("resource_id", entry.ResourceID),
		slog.Int64("actor_id", entry.ActorID),
	)

	// The change already happened; a client disconnect must not lose its record.
	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
	defer cancel()

	if err := recorder.sink.Append(appendCtx, entry); err != nil {
		logger.ErrorContext(ctx, "audit_sink_failed",
			slog.String("action", entry.Action),
			slog.Any("error", err),
		)
	}
}
