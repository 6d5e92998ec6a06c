// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/studio/internal/platform/dberr"
	"github.com/taibuivan/studio/internal/platform/database/schema"
	"github.com/taibuivan/studio/internal/platform/sec"
)

// # User Repository

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

var accountSelect = fmt.Sprintf(`
		SELECT %s
		FROM %s`,
	strings.Join(schema.UserAccount.Columns(), ", "),
	schema.UserAccount.Table,
)

/*
FindByLogin retrieves an account by username or email.

Description: The login is matched case-insensitively against both columns.
Soft-deleted accounts are never returned.

Parameters:
  - ctx: context.Context
  - login: string (Username or email)

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound, apperr.ServiceUnavailable or database errors
*/
func (repository *PostgresUserRepository) FindByLogin(ctx context.Context, login string) (*User, error) {
	query := accountSelect + fmt.Sprintf(`
		WHERE (lower(%s) = lower($1) OR lower(%s) = lower($1)) AND %s IS NULL
		LIMIT 1`,
		schema.UserAccount.Username, schema.UserAccount.Email, schema.UserAccount.DeletedAt,
	)

	user, err := scanUser(repository.pool.QueryRow(ctx, query, strings.TrimSpace(login)))
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_user_repo_find_by_login_failed", "Account")
	}

	return user, nil
}

/*
FindByID retrieves an account by primary key.

Parameters:
  - ctx: context.Context
  - id: int64

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound, apperr.ServiceUnavailable or database errors
*/
func (repository *PostgresUserRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	query := accountSelect + fmt.Sprintf(`
		WHERE %s = $1 AND %s IS NULL`,
		schema.UserAccount.ID, schema.UserAccount.DeletedAt,
	)

	user, err := scanUser(repository.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_user_repo_find_by_id_failed", "Account")
	}

	return user, nil
}

// TouchLastLogin stamps the account's last successful sign-in.
func (repository *PostgresUserRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2
		WHERE %s = $1`,
		schema.UserAccount.Table, schema.UserAccount.LastLoginAt, schema.UserAccount.ID,
	)

	if _, err := repository.pool.Exec(ctx, query, id, at); err != nil {
		return dberr.Wrap(err, "postgres_user_repo_touch_last_login_failed", "Account")
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		user        User
		role        string
		displayName *string
	)

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&displayName,
		&role,
		&user.IsActive,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if displayName != nil {
		user.DisplayName = *displayName
	}

	parsed, ok := sec.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("account %d has unknown role %q", user.ID, role)
	}
	user.Role = parsed

	return &user, nil
}
