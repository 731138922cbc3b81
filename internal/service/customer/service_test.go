package customer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository/memory"
	"github.com/jwalitptl/crm-api/internal/service/audit"
	"github.com/jwalitptl/crm-api/internal/testutil"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

func setup(t *testing.T) (*Service, *model.User, *model.User, *testutil.Events) {
	t.Helper()
	repos := memory.NewStore().Repositories()
	_, admin := testutil.CreateTestOrg(t, repos, "Acme")
	_, outsider := testutil.CreateTestOrg(t, repos, "Other")
	events := &testutil.Events{}
	svc := NewService(repos.Customers, events, audit.NewNop(), logger.Nop(), metrics.NewNop())
	return svc, admin, outsider, events
}

func strPtr(s string) *string { return &s }

func TestCustomerLifecycle(t *testing.T) {
	svc, admin, outsider, _ := setup(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, admin, &model.CreateCustomerRequest{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     strPtr("grace@navy.test"),
		Segment:   strPtr("vip"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.CustomerStatusActive, created.Status)

	_, err = svc.Get(ctx, outsider.OrganizationID, created.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	updated, err := svc.Update(ctx, admin, created.ID, &model.UpdateCustomerRequest{Phone: strPtr("555-0100")})
	require.NoError(t, err)
	assert.Equal(t, "555-0100", *updated.Phone)
	assert.Equal(t, "Grace", updated.FirstName)

	list, total, err := svc.List(ctx, model.CustomerFilter{OrganizationID: admin.OrganizationID, Search: "grace@"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, admin, created.ID))

	_, total, err = svc.List(ctx, model.CustomerFilter{OrganizationID: admin.OrganizationID})
	require.NoError(t, err)
	assert.Zero(t, total, "inactive customers are hidden by default")

	_, total, err = svc.List(ctx, model.CustomerFilter{OrganizationID: admin.OrganizationID, Status: model.CustomerStatusInactive})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestRecordPurchase(t *testing.T) {
	svc, admin, outsider, events := setup(t)
	ctx := context.Background()
	c, err := svc.Create(ctx, admin, &model.CreateCustomerRequest{FirstName: "Ada", LastName: "King"})
	require.NoError(t, err)

	day := func(s string) *model.Date {
		d, err := model.ParseDate(s)
		require.NoError(t, err)
		return &d
	}

	t.Run("single purchase sets totals", func(t *testing.T) {
		got, err := svc.RecordPurchase(ctx, admin, c.ID, &model.RecordPurchaseRequest{PurchaseDate: day("2024-05-01"), Amount: 80})
		require.NoError(t, err)
		assert.Equal(t, 1, got.PurchaseCount)
		assert.Equal(t, 80.0, got.TotalSpent)
		assert.Equal(t, 80.0, got.AveragePurchaseValue)
		assert.Nil(t, got.PurchaseFrequencyDays)
	})

	t.Run("second purchase ten days later", func(t *testing.T) {
		got, err := svc.RecordPurchase(ctx, admin, c.ID, &model.RecordPurchaseRequest{PurchaseDate: day("2024-05-11"), Amount: 20})
		require.NoError(t, err)
		require.NotNil(t, got.PurchaseFrequencyDays)
		assert.InDelta(t, 10.0, *got.PurchaseFrequencyDays, 0.0001)
		assert.Equal(t, 50.0, got.AveragePurchaseValue)
	})

	t.Run("request id deduplicates", func(t *testing.T) {
		req := &model.RecordPurchaseRequest{Amount: 5, RequestID: strPtr("req-1")}
		first, err := svc.RecordPurchase(ctx, admin, c.ID, req)
		require.NoError(t, err)
		again, err := svc.RecordPurchase(ctx, admin, c.ID, &model.RecordPurchaseRequest{Amount: 5, RequestID: strPtr("req-1")})
		require.NoError(t, err)
		assert.Equal(t, first.PurchaseCount, again.PurchaseCount)
		assert.Equal(t, first.TotalSpent, again.TotalSpent)
	})

	assert.Equal(t, 3, events.Count(model.EventCustomerPurchase))

	t.Run("non positive amount", func(t *testing.T) {
		_, err := svc.RecordPurchase(ctx, admin, c.ID, &model.RecordPurchaseRequest{Amount: 0})
		assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
	})

	t.Run("foreign customer", func(t *testing.T) {
		_, err := svc.RecordPurchase(ctx, outsider, c.ID, &model.RecordPurchaseRequest{Amount: 1})
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
		_, err = svc.RecordPurchase(ctx, admin, uuid.New(), &model.RecordPurchaseRequest{Amount: 1})
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})
}

func TestPurchaseDefaultsToToday(t *testing.T) {
	svc, admin, _, _ := setup(t)
	fixed := time.Date(2024, 7, 4, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	c, err := svc.Create(context.Background(), admin, &model.CreateCustomerRequest{FirstName: "Lin", LastName: "Yu"})
	require.NoError(t, err)
	got, err := svc.RecordPurchase(context.Background(), admin, c.ID, &model.RecordPurchaseRequest{Amount: 12.5})
	require.NoError(t, err)
	assert.Equal(t, "2024-07-04", got.LastPurchaseDate.String())
	assert.Equal(t, fixed, *got.SegmentUpdatedAt)
}
