package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository/memory"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/messaging"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
		MaxRetries:    1,
	}
}

func pendingEvent(eventType string, at time.Time) *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   []byte(`{"ok":true}`),
		Status:    string(model.OutboxStatusPending),
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestOutboxProcessorPublishes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewStore()
	repos := store.Repositories()
	broker := messaging.NewMemoryBroker()
	sub, err := broker.Subscribe(ctx, model.EventCustomerPurchase)
	require.NoError(t, err)

	require.NoError(t, repos.Outbox.Create(ctx, pendingEvent(model.EventCustomerPurchase, time.Now())))

	p := NewOutboxProcessor(repos.Outbox, broker, testConfig(), logger.Nop(), metrics.NewNop())
	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case msg := <-sub:
		assert.JSONEq(t, `{"ok":true}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("event was not published")
	}

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, string(model.OutboxStatusProcessed), events[0].Status)
	assert.NotNil(t, events[0].ProcessedAt)
}

func TestOutboxProcessorMarksFailed(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repositories()
	broker := messaging.NewMemoryBroker()
	require.NoError(t, broker.Close())

	require.NoError(t, repos.Outbox.Create(ctx, pendingEvent(model.EventOpportunityWon, time.Now())))

	p := NewOutboxProcessor(repos.Outbox, broker, testConfig(), logger.Nop(), metrics.NewNop())
	_, err := p.ProcessBatch(ctx)
	require.NoError(t, err)

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, string(model.OutboxStatusFailed), events[0].Status)
	require.NotNil(t, events[0].ErrorMessage)
	assert.Contains(t, *events[0].ErrorMessage, "broker closed")
}

func TestNewOutboxProcessorRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 0
	assert.Panics(t, func() {
		NewOutboxProcessor(nil, nil, cfg, logger.Nop(), metrics.NewNop())
	})
}

func TestRetryStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := retry(ctx, 3, time.Hour, func() error {
		calls++
		return assert.AnError
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestHousekeeperRun(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repositories()
	now := time.Now()

	old := pendingEvent(model.EventUserRegistered, now.Add(-48*time.Hour))
	require.NoError(t, repos.Outbox.Create(ctx, old))
	_, err := repos.Outbox.ProcessPending(ctx, 10, 3, func(context.Context, *model.OutboxEvent) error { return nil })
	require.NoError(t, err)

	userID := uuid.New()
	require.NoError(t, repos.Sessions.Create(ctx, &model.ActiveSession{
		ID: uuid.New(), UserID: userID, Token: "expired", LastActivity: now.Add(-2 * time.Hour),
		CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour), IsActive: true,
	}))
	require.NoError(t, repos.PasswordResets.Create(ctx, &model.PasswordReset{
		ID: uuid.New(), UserID: userID, Token: "stale", ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-25 * time.Hour),
	}))

	h := NewHousekeeper(repos.Outbox, repos.PasswordResets, repos.Sessions, HousekeeperConfig{
		Schedule:        "0 0 * * * *",
		OutboxRetention: time.Nanosecond,
	}, logger.Nop(), metrics.NewNop())
	h.now = func() time.Time { return now.Add(time.Hour) }

	require.NoError(t, h.Run(ctx))

	assert.Empty(t, store.Events())
	_, err = repos.PasswordResets.GetByToken(ctx, "stale")
	assert.Error(t, err)
	sessions, err := repos.Sessions.ListActive(ctx, userID, now.Add(-3*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestHousekeeperRejectsBadSchedule(t *testing.T) {
	repos := memory.NewStore().Repositories()
	h := NewHousekeeper(repos.Outbox, repos.PasswordResets, repos.Sessions, HousekeeperConfig{
		Schedule: "not a schedule",
	}, logger.Nop(), metrics.NewNop())
	assert.Error(t, h.Start())
}
