// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package api contains the health check handlers for liveness and readiness probes.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/taibuivan/studio/internal/platform/constants"
	"github.com/taibuivan/studio/internal/platform/respond"
)

// checkTimeout bounds every dependency probe.
const checkTimeout = 2 * time.Second

// Readiness states.
const (
	StatusReady       = "ready"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// HealthDependencies holds the injectable dependency checkers for the /ready endpoint.
type HealthDependencies struct {
	// CheckDatabase pings the PostgreSQL pool. Its failure makes the service unavailable.
	CheckDatabase func(ctx context.Context) error

	// CheckStore pings the networked store. Its failure only degrades the service,
	// since every store falls back to process memory.
	CheckStore func(ctx context.Context) error
}

type healthHandler struct {
	dependencies HealthDependencies
	logger       *slog.Logger
}

// NewHealthHandlers creates the /health and /ready http.HandlerFuncs.
func NewHealthHandlers(deps HealthDependencies, logger *slog.Logger) (liveness, readiness http.HandlerFunc) {
	handler := &healthHandler{dependencies: deps, logger: logger}
	return handler.liveness, handler.readiness
}

// liveness handles GET /health (Liveness probe).
func (handler *healthHandler) liveness(writer http.ResponseWriter, request *http.Request) {
	respond.OK(writer, map[string]string{constants.FieldStatus: "ok"})
}

type checkResult struct {
	Name     string `json:"name"`
	IsOK     bool   `json:"ok"`
	Critical bool   `json:"critical"`
	Error    string `json:"error,omitempty"`
}

// readiness handles GET /ready (Readiness probe).
func (handler *healthHandler) readiness(writer http.ResponseWriter, request *http.Request) {
	ctx, cancel := context.WithTimeout(request.Context(), checkTimeout)
	defer cancel()

	results := make([]checkResult, 0, 2)
	status := StatusReady

	// Check PostgreSQL
	if handler.dependencies.CheckDatabase != nil {
		result := handler.check(ctx, "postgres", true, handler.dependencies.CheckDatabase)
		if !result.IsOK {
			status = StatusUnavailable
		}
		results = append(results, result)
	}

	// Check the networked store
	if handler.dependencies.CheckStore != nil {
		result := handler.check(ctx, "redis", false, handler.dependencies.CheckStore)
		if !result.IsOK && status == StatusReady {
			status = StatusDegraded
		}
		results = append(results, result)
	}

	httpStatus := http.StatusOK
	if status == StatusUnavailable {
		httpStatus = http.StatusServiceUnavailable
	}

	respond.JSON(writer, httpStatus, respond.SuccessEnvelope{Data: map[string]any{
		constants.FieldStatus: status,
		constants.FieldChecks: results,
	}})
}

func (handler *healthHandler) check(ctx context.Context, name string, critical bool, probe func(context.Context) error) checkResult {
	result := checkResult{Name: name, IsOK: true, Critical: critical}

	if err := probe(ctx); err != nil {
		result.IsOK = false
		result.Error = err.Error()

		level := slog.LevelWarn
		if critical {
			level = slog.LevelError
		}
		handler.logger.Log(ctx, level, "readiness_check_failed", slog.String("dependency", name), slog.Any("error", err))
	}

	return result
}
