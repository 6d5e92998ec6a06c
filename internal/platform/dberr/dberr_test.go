// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dberr_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/studio/internal/platform/apperr"
	"github.com/taibuivan/studio/internal/platform/dberr"
)

/*
TestWrap verifies the classification of driver errors.
*/
func TestWrap(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "no rows", err: pgx.ErrNoRows, wantStatus: http.StatusNotFound},
		{name: "wrapped no rows", err: fmt.Errorf("scan: %w", pgx.ErrNoRows), wantStatus: http.StatusNotFound},
		{name: "admin shutdown", err: &pgconn.PgError{Code: pgerrcode.AdminShutdown}, wantStatus: http.StatusServiceUnavailable},
		{name: "connection failure", err: &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, wantStatus: http.StatusServiceUnavailable},
		{name: "too many connections", err: &pgconn.PgError{Code: pgerrcode.TooManyConnections}, wantStatus: http.StatusServiceUnavailable},
		{name: "deadline", err: context.DeadlineExceeded, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := dberr.Wrap(tt.err, "find_account", "Account")

			appError := apperr.As(wrapped)
			require.NotNil(t, appError)
			assert.Equal(t, tt.wantStatus, appError.HTTPStatus)
		})
	}
}

/*
TestWrap_StatementErrors verifies rejected statements stay internal and keep their cause.
*/
func TestWrap_StatementErrors(t *testing.T) {
	violation := &pgconn.PgError{Code: pgerrcode.CheckViolation}

	wrapped := dberr.Wrap(violation, "set_status", "Resource")

	assert.False(t, apperr.IsAppError(wrapped))
	assert.True(t, errors.Is(wrapped, violation))
	assert.Contains(t, wrapped.Error(), "set_status")
	assert.NoError(t, dberr.Wrap(nil, "noop", "Resource"))
}
