package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

type HousekeeperConfig struct {
	// Schedule is a six-field cron expression (seconds first)
	Schedule        string
	OutboxRetention time.Duration
	Timeout         time.Duration
}

// Housekeeper prunes processed outbox rows, stale reset tokens and expired sessions on a cron schedule
type Housekeeper struct {
	outbox   repository.OutboxRepository
	resets   repository.PasswordResetRepository
	sessions repository.SessionRepository
	config   HousekeeperConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
	cron     *cron.Cron
	now      func() time.Time
}

func NewHousekeeper(
	outbox repository.OutboxRepository,
	resets repository.PasswordResetRepository,
	sessions repository.SessionRepository,
	config HousekeeperConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Housekeeper {
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}
	return &Housekeeper{
		outbox:   outbox,
		resets:   resets,
		sessions: sessions,
		config:   config,
		logger:   logger,
		metrics:  metrics,
		cron:     cron.New(cron.WithSeconds()),
		now:      time.Now,
	}
}

// Start registers the job and starts the scheduler
func (h *Housekeeper) Start() error {
	if _, err := h.cron.AddFunc(h.config.Schedule, h.runScheduled); err != nil {
		return fmt.Errorf("invalid housekeeping schedule %q: %w", h.config.Schedule, err)
	}
	h.cron.Start()
	h.logger.Info("Housekeeping scheduled", "schedule", h.config.Schedule)
	return nil
}

// Stop waits for a running job to finish or ctx to expire
func (h *Housekeeper) Stop(ctx context.Context) {
	done := h.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (h *Housekeeper) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if err := h.Run(ctx); err != nil {
		h.logger.Error(err, "Housekeeping run failed")
	}
}

// Run executes every housekeeping task once; a failing task does not stop the others
func (h *Housekeeper) Run(ctx context.Context) error {
	now := h.now()
	tasks := []struct {
		name string
		fn   func(context.Context) (int64, error)
	}{
		{"outbox", func(ctx context.Context) (int64, error) {
			return h.outbox.DeleteProcessedBefore(ctx, now.Add(-h.config.OutboxRetention))
		}},
		{"password_resets", func(ctx context.Context) (int64, error) {
			return h.resets.DeleteStale(ctx, now)
		}},
		{"sessions", func(ctx context.Context) (int64, error) {
			return h.sessions.DeactivateExpired(ctx, now)
		}},
	}

	var firstErr error
	for _, task := range tasks {
		n, err := task.fn(ctx)
		if err != nil {
			h.logger.Error(err, "Housekeeping task failed", "task", task.name)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", task.name, err)
			}
			continue
		}
		h.metrics.HousekeepingRemoved.WithLabelValues(task.name).Add(float64(n))
		if n > 0 {
			h.logger.Info("Housekeeping task done", "task", task.name, "rows", n)
		}
	}
	return firstErr
}
