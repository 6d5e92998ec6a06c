// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"
)

// # Repository Contracts

// UserRepository loads accounts for the login flow.
//
// Lookups of a missing or soft-deleted account return an [apperr.AppError]
// with code NOT_FOUND.
type UserRepository interface {
	// FindByLogin resolves an account by username or email, case-insensitively.
	FindByLogin(ctx context.Context, login string) (*User, error)

	// FindByID resolves an account by primary key.
	FindByID(ctx context.Context, id int64) (*User, error)

	// TouchLastLogin records a successful sign-in.
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}
