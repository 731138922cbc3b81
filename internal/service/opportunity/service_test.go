package opportunity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/repository/memory"
	"github.com/jwalitptl/crm-api/internal/service/audit"
	"github.com/jwalitptl/crm-api/internal/testutil"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

type fixture struct {
	svc      *Service
	repos    repository.Repositories
	events   *testutil.Events
	admin    *model.User
	outsider *model.User
	pipeline *model.Pipeline
	clock    time.Time
}

func (f *fixture) tick(d time.Duration) { f.clock = f.clock.Add(d) }

// setup creates a pipeline with stages [Lead, Proposal, Won, Lost].
func setup(t *testing.T) *fixture {
	t.Helper()
	repos := memory.NewStore().Repositories()
	_, admin := testutil.CreateTestOrg(t, repos, "Acme")
	_, outsider := testutil.CreateTestOrg(t, repos, "Other")

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &model.Pipeline{
		Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		OrganizationID: admin.OrganizationID,
		Name:           "Sales",
		Color:          model.DefaultStageColor,
		IsActive:       true,
		IsDefault:      true,
	}
	for i, name := range []string{"Lead", "Proposal", "Won", "Lost"} {
		p.Stages = append(p.Stages, model.PipelineStage{
			Base:       model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
			PipelineID: p.ID,
			Name:       name,
			Order:      i,
			IsWon:      name == "Won",
			IsLost:     name == "Lost",
		})
	}
	require.NoError(t, repos.Pipelines.Create(context.Background(), p))

	events := &testutil.Events{}
	f := &fixture{repos: repos, events: events, admin: admin, outsider: outsider, pipeline: p, clock: now}
	f.svc = NewService(repos.Opportunities, repos.Pipelines, repos.Customers, repos.Users, events, audit.NewNop(), logger.Nop(), metrics.NewNop())
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) create(t *testing.T, stage int) *model.Opportunity {
	t.Helper()
	opp, err := f.svc.Create(context.Background(), f.admin, &model.CreateOpportunityRequest{
		PipelineID: f.pipeline.ID,
		StageID:    f.pipeline.Stages[stage].ID,
		Title:      "Big deal",
		Value:      1000,
	})
	require.NoError(t, err)
	return opp
}

func TestCreate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	opp := f.create(t, 0)
	assert.Equal(t, model.OpportunityStatusOpen, opp.Status)
	assert.Equal(t, model.DefaultCurrency, opp.Currency)
	assert.Equal(t, f.admin.ID, opp.UserID)

	history, err := f.svc.History(ctx, f.admin.OrganizationID, opp.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].FromStageID)

	won := f.create(t, 2)
	assert.Equal(t, model.OpportunityStatusWon, won.Status)

	t.Run("stage outside pipeline", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.admin, &model.CreateOpportunityRequest{PipelineID: f.pipeline.ID, StageID: uuid.New(), Title: "x"})
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("foreign pipeline", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.outsider, &model.CreateOpportunityRequest{PipelineID: f.pipeline.ID, StageID: f.pipeline.Stages[0].ID, Title: "x"})
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("foreign customer", func(t *testing.T) {
		c := testutil.CreateTestCustomer(t, f.repos, f.outsider.OrganizationID, "Eve")
		_, err := f.svc.Create(ctx, f.admin, &model.CreateOpportunityRequest{PipelineID: f.pipeline.ID, StageID: f.pipeline.Stages[0].ID, CustomerID: &c.ID, Title: "x"})
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("foreign owner", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.admin, &model.CreateOpportunityRequest{PipelineID: f.pipeline.ID, StageID: f.pipeline.Stages[0].ID, UserID: &f.outsider.ID, Title: "x"})
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("inactive pipeline", func(t *testing.T) {
		p, err := f.repos.Pipelines.Get(ctx, f.admin.OrganizationID, f.pipeline.ID)
		require.NoError(t, err)
		p.IsActive = false
		p.IsDefault = false
		require.NoError(t, f.repos.Pipelines.Update(ctx, p))
		_, err = f.svc.Create(ctx, f.admin, &model.CreateOpportunityRequest{PipelineID: f.pipeline.ID, StageID: f.pipeline.Stages[0].ID, Title: "x"})
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})
}

func TestChangeStageToWon(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	opp := f.create(t, 0)

	f.tick(90 * time.Second)
	got, err := f.svc.ChangeStage(ctx, f.admin, opp.ID, f.pipeline.Stages[2].ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.OpportunityStatusWon, got.Status)
	assert.Equal(t, f.clock, *got.LastStageChange)

	history, err := f.svc.History(ctx, f.admin.OrganizationID, opp.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	latest := history[0]
	assert.Equal(t, f.pipeline.Stages[0].ID, *latest.FromStageID)
	assert.Equal(t, f.pipeline.Stages[2].ID, latest.ToStageID)
	require.NotNil(t, latest.TimeInStage)
	assert.Equal(t, int64(90), *latest.TimeInStage)

	assert.Equal(t, 1, f.events.Count(model.EventOpportunityStageChanged))
	assert.Equal(t, 1, f.events.Count(model.EventOpportunityWon))
	assert.Zero(t, f.events.Count(model.EventOpportunityLost))
}

func TestChangeStageSameStageIsNoop(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	opp := f.create(t, 1)
	target := f.pipeline.Stages[1].ID

	for i := 0; i < 2; i++ {
		f.tick(time.Minute)
		got, err := f.svc.ChangeStage(ctx, f.admin, opp.ID, target, nil)
		require.NoError(t, err)
		assert.Equal(t, *opp.LastStageChange, *got.LastStageChange)
	}

	history, err := f.svc.History(ctx, f.admin.OrganizationID, opp.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Empty(t, f.events.Types)
}

func TestHistoryFormsChain(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	opp := f.create(t, 0)

	for _, idx := range []int{1, 0, 3, 1} {
		f.tick(time.Hour)
		_, err := f.svc.ChangeStage(ctx, f.admin, opp.ID, f.pipeline.Stages[idx].ID, nil)
		require.NoError(t, err)
	}

	history, err := f.svc.History(ctx, f.admin.OrganizationID, opp.ID)
	require.NoError(t, err)
	require.Len(t, history, 5)
	for i := 0; i < len(history)-1; i++ {
		newer, older := history[i], history[i+1]
		require.NotNil(t, newer.FromStageID, fmt.Sprintf("entry %d", i))
		assert.Equal(t, older.ToStageID, *newer.FromStageID)
	}
	assert.Nil(t, history[len(history)-1].FromStageID)
	assert.Equal(t, 1, f.events.Count(model.EventOpportunityLost))
}

func TestChangeStageErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	opp := f.create(t, 0)

	_, err := f.svc.ChangeStage(ctx, f.admin, opp.ID, uuid.New(), nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = f.svc.ChangeStage(ctx, f.outsider, opp.ID, f.pipeline.Stages[1].ID, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

type staleRepository struct {
	repository.OpportunityRepository
}

func (staleRepository) ChangeStage(ctx context.Context, orgID, id uuid.UUID, fn func(*model.Opportunity) (*model.StageHistory, error)) (*model.Opportunity, *model.StageHistory, error) {
	return nil, nil, fmt.Errorf("failed to change stage: %w", repository.ErrStaleWrite)
}

func TestChangeStageStaleWriteIsConflict(t *testing.T) {
	f := setup(t)
	opp := f.create(t, 0)
	f.svc.repo = staleRepository{f.repos.Opportunities}

	_, err := f.svc.ChangeStage(context.Background(), f.admin, opp.ID, f.pipeline.Stages[1].ID, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	assert.Empty(t, f.events.Types)
}

func TestUpdateKeepsStage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	opp := f.create(t, 0)

	title := "Renamed"
	value := 2500.0
	got, err := f.svc.Update(ctx, f.admin, opp.ID, &model.UpdateOpportunityRequest{Title: &title, Value: &value})
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)
	assert.Equal(t, value, got.Value)
	assert.Equal(t, opp.StageID, got.StageID)

	list, total, err := f.svc.List(ctx, model.OpportunityFilter{OrganizationID: f.admin.OrganizationID, Search: "renam"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)

	require.NoError(t, f.svc.Delete(ctx, f.admin, opp.ID))
	_, err = f.svc.History(ctx, f.admin.OrganizationID, opp.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
