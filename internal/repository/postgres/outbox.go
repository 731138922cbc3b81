package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

const outboxColumns = `id, event_type, payload, status, error_message, retry_count, created_at, updated_at, processed_at`

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			id, event_type, payload, status, retry_count, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		[]byte(event.Payload),
		event.Status,
		event.RetryCount,
		event.CreatedAt,
		event.UpdatedAt,
	)
	return wrap("create outbox event", err)
}

// ProcessPending runs in a single transaction so the row locks taken with
// SKIP LOCKED keep concurrent workers off the same batch.
func (r *outboxRepository) ProcessPending(ctx context.Context, limit, maxRetries int, fn func(context.Context, *model.OutboxEvent) error) (int, error) {
	var processed int

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			SELECT ` + outboxColumns + `
			FROM outbox_events
			WHERE status = $1
			ORDER BY created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		`
		var events []*model.OutboxEvent
		if err := tx.SelectContext(ctx, &events, query, string(model.OutboxStatusPending), limit); err != nil {
			return wrap("lock pending events", err)
		}

		for _, evt := range events {
			if err := r.record(ctx, tx, evt, maxRetries, fn(ctx, evt)); err != nil {
				return err
			}
			processed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return processed, nil
}

func (r *outboxRepository) record(ctx context.Context, tx *sqlx.Tx, evt *model.OutboxEvent, maxRetries int, handleErr error) error {
	if handleErr == nil {
		_, err := tx.ExecContext(ctx, `
			UPDATE outbox_events
			SET status = $1, error_message = NULL, processed_at = NOW(), updated_at = NOW()
			WHERE id = $2
		`, string(model.OutboxStatusProcessed), evt.ID)
		return wrap("mark event processed", err)
	}

	status := model.OutboxStatusPending
	if evt.RetryCount+1 >= maxRetries {
		status = model.OutboxStatusFailed
	}
	msg := handleErr.Error()
	_, err := tx.ExecContext(ctx, `
		UPDATE outbox_events
		SET status = $1, error_message = $2, retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $3
	`, string(status), msg, evt.ID)
	return wrap("mark event failed", err)
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = $1
		AND processed_at < $2
	`
	result, err := r.db.ExecContext(ctx, query, string(model.OutboxStatusProcessed), before)
	if err != nil {
		return 0, wrap("delete processed events", err)
	}
	return result.RowsAffected()
}
