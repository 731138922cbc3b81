package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/pkg/logger"
)

// EventService appends events to the outbox table. The worker publishes them.
type EventService struct {
	outboxRepo repository.OutboxRepository
	logger     *logger.Logger
	now        func() time.Time
}

func NewEventService(outboxRepo repository.OutboxRepository, logger *logger.Logger) *EventService {
	return &EventService{
		outboxRepo: outboxRepo,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *EventService) Emit(ctx context.Context, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := s.now()
	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payloadJSON,
		Status:    string(model.OutboxStatusPending),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.outboxRepo.Create(ctx, event); err != nil {
		s.logger.Error(err, "Failed to store outbox event", "event_type", eventType)
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	s.logger.Debug("Event stored", "event_id", event.ID.String(), "event_type", eventType)
	return nil
}

var _ Emitter = (*EventService)(nil)
