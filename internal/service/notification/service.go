package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jwalitptl/crm-api/internal/email"
	"github.com/jwalitptl/crm-api/pkg/logger"
)

const (
	maxRetries = 3
	retryDelay = 2 * time.Second
)

// Service sends notification emails off the request path. Calls return
// immediately; delivery runs on its own goroutine with a bounded context
// detached from the caller's cancellation.
type Service interface {
	SendInvitation(ctx context.Context, to, inviterName, organizationName, token string)
	SendPasswordReset(ctx context.Context, to, name, token string)
	SendWelcome(ctx context.Context, to, name string)
	// Wait blocks until in-flight deliveries finish
	Wait()
}

type service struct {
	emailSvc   email.Service
	logger     *logger.Logger
	timeout    time.Duration
	retryDelay time.Duration
	wg         sync.WaitGroup
}

func NewService(emailSvc email.Service, logger *logger.Logger, timeout time.Duration) Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &service{
		emailSvc:   emailSvc,
		logger:     logger,
		timeout:    timeout,
		retryDelay: retryDelay,
	}
}

func (s *service) SendInvitation(ctx context.Context, to, inviterName, organizationName, token string) {
	s.dispatch(ctx, "invitation", to, func(ctx context.Context) error {
		return s.emailSvc.SendInvitation(ctx, to, inviterName, organizationName, token)
	})
}

func (s *service) SendPasswordReset(ctx context.Context, to, name, token string) {
	s.dispatch(ctx, "password_reset", to, func(ctx context.Context) error {
		return s.emailSvc.SendPasswordReset(ctx, to, name, token)
	})
}

func (s *service) SendWelcome(ctx context.Context, to, name string) {
	s.dispatch(ctx, "welcome", to, func(ctx context.Context) error {
		return s.emailSvc.SendWelcome(ctx, to, name)
	})
}

func (s *service) Wait() {
	s.wg.Wait()
}

func (s *service) dispatch(parent context.Context, kind, to string, send func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.timeout)
		defer cancel()

		if err := s.deliver(ctx, send); err != nil {
			s.logger.Error(err, "Failed to send notification", "kind", kind, "to", to)
			return
		}
		s.logger.Debug("Notification sent", "kind", kind, "to", to)
	}()
}

func (s *service) deliver(ctx context.Context, send func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err = send(ctx); err == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("delivery abandoned after %d attempts: %w", attempt, err)
		case <-time.After(s.retryDelay * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("delivery failed after %d attempts: %w", maxRetries, err)
}
