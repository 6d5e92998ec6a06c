// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/studio/internal/platform/database/schema"
	"github.com/taibuivan/studio/internal/platform/dberr"
)

// PostgresSink appends entries to system.auditlog.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink creates a sink over pool.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

var insertEntry = fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9)`,
	schema.SystemAuditLog.Table,
	schema.SystemAuditLog.ActorID, schema.SystemAuditLog.Action,
	schema.SystemAuditLog.ResourceType, schema.SystemAuditLog.ResourceID,
	schema.SystemAuditLog.Detail, schema.SystemAuditLog.IPAddress,
	schema.SystemAuditLog.UserAgent, schema.SystemAuditLog.RequestID,
	schema.SystemAuditLog.CreatedAt,
)

// Append implements [Sink].
func (sink *PostgresSink) Append(ctx context.Context, entry *Entry) error {
	detail := entry.Detail
	if detail == nil {
		detail = map[string]any{}
	}

	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres_audit_sink_encode_failed: %w", err)
	}

	// Anonymous actions are stored with a NULL actor.
	var actorID *int64
	if entry.ActorID != 0 {
		actorID = &entry.ActorID
	}

	_, err = sink.pool.Exec(ctx, insertEntry,
		actorID,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		string(payload),
		nullable(entry.ClientIP),
		nullable(entry.UserAgent),
		nullable(entry.RequestID),
		entry.OccurredAt,
	)
	if err != nil {
		return dberr.Wrap(err, "postgres_audit_sink_append_failed", "Audit entry")
	}
	return nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
