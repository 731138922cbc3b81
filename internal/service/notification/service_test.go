package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/crm-api/pkg/logger"
)

type flakyEmail struct {
	mu       sync.Mutex
	failures int
	calls    int
	sentTo   []string
}

func (f *flakyEmail) record(to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("smtp unavailable")
	}
	f.sentTo = append(f.sentTo, to)
	return nil
}

func (f *flakyEmail) SendInvitation(ctx context.Context, to, inviterName, organizationName, token string) error {
	return f.record(to)
}

func (f *flakyEmail) SendPasswordReset(ctx context.Context, to, name, token string) error {
	return f.record(to)
}

func (f *flakyEmail) SendWelcome(ctx context.Context, to, name string) error {
	return f.record(to)
}

func newTestService(e *flakyEmail) *service {
	svc := NewService(e, logger.Nop(), time.Second).(*service)
	svc.retryDelay = time.Millisecond
	return svc
}

func TestDeliveryOutlivesRequestContext(t *testing.T) {
	e := &flakyEmail{}
	svc := newTestService(e)

	ctx, cancel := context.WithCancel(context.Background())
	svc.SendWelcome(ctx, "a@example.com", "Ada")
	cancel()
	svc.Wait()

	assert.Equal(t, []string{"a@example.com"}, e.sentTo)
}

func TestDeliveryRetries(t *testing.T) {
	e := &flakyEmail{failures: 2}
	svc := newTestService(e)

	svc.SendPasswordReset(context.Background(), "b@example.com", "Bo", "tok")
	svc.Wait()

	assert.Equal(t, 3, e.calls)
	assert.Equal(t, []string{"b@example.com"}, e.sentTo)
}

func TestDeliveryGivesUp(t *testing.T) {
	e := &flakyEmail{failures: 10}
	svc := newTestService(e)

	svc.SendInvitation(context.Background(), "c@example.com", "Ann", "Acme", "tok")
	svc.Wait()

	assert.Equal(t, maxRetries, e.calls)
	assert.Empty(t, e.sentTo)
}
