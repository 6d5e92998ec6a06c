// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/studio/internal/access"
	"github.com/taibuivan/studio/internal/platform/apperr"
	"github.com/taibuivan/studio/internal/platform/dberr"
)

// # Repository Contracts

// Store applies the privileged changes.
//
// Missing or already deleted items return an [apperr.AppError] with code NOT_FOUND.
type Store interface {
	Delete(ctx context.Context, resource Resource, id int64) error
	SetStatus(ctx context.Context, resource Resource, id int64, status string) error
}

// # Postgres Implementation

// PostgresStore implements [Store] and [access.OwnerResolver] using pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store over pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ access.OwnerResolver = (*PostgresStore)(nil)

/*
ResolveOwner returns the author of a live content item.

Returns:
  - int64: Author account ID
  - error: access.ErrOwnerNotFound when the item does not exist or is deleted
*/
func (store *PostgresStore) ResolveOwner(ctx context.Context, resourceType string, id int64) (int64, error) {
	resource, ok := ParseResource(resourceType)
	if !ok {
		return 0, fmt.Errorf("content: unknown resource type %q", resourceType)
	}

	table := resource.table()
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL`,
		table.AuthorID, table.Table, table.ID, table.DeletedAt,
	)

	var ownerID int64
	if err := store.pool.QueryRow(ctx, query, id).Scan(&ownerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, access.ErrOwnerNotFound
		}
		return 0, dberr.Wrap(err, "postgres_content_resolve_owner_failed", "Resource")
	}

	return ownerID, nil
}

// Delete soft-deletes a content item.
func (store *PostgresStore) Delete(ctx context.Context, resource Resource, id int64) error {
	table := resource.table()
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = now(), %s = now()
		WHERE %s = $1 AND %s IS NULL`,
		table.Table, table.DeletedAt, table.UpdatedAt, table.ID, table.DeletedAt,
	)

	tag, err := store.pool.Exec(ctx, query, id)
	if err != nil {
		return dberr.Wrap(err, "postgres_content_delete_failed", "Resource")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Resource")
	}
	return nil
}

// SetStatus changes the publication status of a live content item.
func (store *PostgresStore) SetStatus(ctx context.Context, resource Resource, id int64, status string) error {
	table := resource.table()
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = now()
		WHERE %s = $1 AND %s IS NULL`,
		table.Table, table.Status, table.UpdatedAt, table.ID, table.DeletedAt,
	)

	tag, err := store.pool.Exec(ctx, query, id, status)
	if err != nil {
		return dberr.Wrap(err, "postgres_content_set_status_failed", "Resource")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Resource")
	}
	return nil
}
