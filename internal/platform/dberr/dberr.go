// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/studio/internal/platform/apperr"
)

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
//
//   - No rows: NOT_FOUND naming resource.
//   - Lost connection, shutdown or timeout: SERVICE_UNAVAILABLE.
//   - Anything else: the error annotated with action, rendered as 500 upstream.
func Wrap(err error, action, resource string) error {
	if err == nil {
		return nil
	}

	// 1. Not Found mapping
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(resource)
	}

	// 2. Transient failures the client may retry
	if Unavailable(err) {
		unavailable := apperr.ServiceUnavailable("Database unavailable")
		unavailable.Cause = fmt.Errorf("%s: %w", action, err)
		return unavailable
	}

	return fmt.Errorf("%s: %w", action, err)
}

// Unavailable reports whether err means the database could not answer, as
// opposed to rejecting the statement.
func Unavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgError *pgconn.PgError
	if errors.As(err, &pgError) {
		return pgerrcode.IsConnectionException(pgError.Code) ||
			pgerrcode.IsOperatorIntervention(pgError.Code) ||
			pgerrcode.IsInsufficientResources(pgError.Code)
	}

	var connectError *pgconn.ConnectError
	return errors.As(err, &connectError)
}
