package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/userdesk/userdesk/internal/model"
)

// InsertAuditEvents stores a batch of audit events. Events already stored
// under the same stream ID are skipped, so a redelivered batch is harmless.
func (r *Repository) InsertAuditEvents(ctx context.Context, events []*model.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	query := `
		INSERT INTO audit_events (
			id, stream_id, event_type, actor_id, subject_id, client_key, occurred_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (stream_id) DO NOTHING
	`

	for _, event := range events {
		batch.Queue(query,
			event.ID,
			event.StreamID,
			string(event.Type),
			nullableID(event.ActorID),
			nullableID(event.SubjectID),
			event.ClientKey,
			event.OccurredAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(events); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert audit event %d: %w", i, err)
		}
	}

	return nil
}

// ListAuditEvents returns the newest events about one account.
func (r *Repository) ListAuditEvents(ctx context.Context, subjectID int64, limit int) ([]*model.AuditEvent, error) {
	query := `
		SELECT id, stream_id, event_type, COALESCE(actor_id, 0), COALESCE(subject_id, 0),
		       client_key, occurred_at, created_at
		FROM audit_events
		WHERE subject_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	events := make([]*model.AuditEvent, 0, limit)
	for rows.Next() {
		var event model.AuditEvent
		var eventType string
		if err := rows.Scan(
			&event.ID,
			&event.StreamID,
			&eventType,
			&event.ActorID,
			&event.SubjectID,
			&event.ClientKey,
			&event.OccurredAt,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		event.Type = model.AuditEventType(eventType)
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}

	return events, nil
}

// nullableID stores zero ids as NULL.
func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
