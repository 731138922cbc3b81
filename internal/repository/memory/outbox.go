package memory

import (
	"context"
	"time"

	"github.com/jwalitptl/crm-api/internal/model"
)

type outboxRepository struct{ s *Store }

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *event
	r.s.outbox = append(r.s.outbox, &c)
	return nil
}

func (r *outboxRepository) ProcessPending(ctx context.Context, limit, maxRetries int, fn func(context.Context, *model.OutboxEvent) error) (int, error) {
	r.s.mu.Lock()
	var batch []*model.OutboxEvent
	for _, e := range r.s.outbox {
		if e.Status == string(model.OutboxStatusPending) {
			batch = append(batch, e)
			if len(batch) == limit {
				break
			}
		}
	}
	r.s.mu.Unlock()

	for _, e := range batch {
		snapshot := *e
		err := fn(ctx, &snapshot)

		r.s.mu.Lock()
		now := r.s.now()
		e.UpdatedAt = now
		if err != nil {
			msg := err.Error()
			e.ErrorMessage = &msg
			e.RetryCount++
			if e.RetryCount >= maxRetries {
				e.Status = string(model.OutboxStatusFailed)
			}
		} else {
			e.Status = string(model.OutboxStatusProcessed)
			e.ProcessedAt = &now
		}
		r.s.mu.Unlock()
	}
	return len(batch), nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	kept := r.s.outbox[:0]
	for _, e := range r.s.outbox {
		if e.Status == string(model.OutboxStatusProcessed) && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.s.outbox = kept
	return n, nil
}

// Events returns a snapshot of the outbox, oldest first
func (s *Store) Events() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.OutboxEvent, 0, len(s.outbox))
	for _, e := range s.outbox {
		out = append(out, *e)
	}
	return out
}
