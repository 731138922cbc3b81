package pipeline

import (
	"context"
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
)

func setup(t *testing.T) (*Service, repository.Repositories, *model.User) {
	t.Helper()
	repos := memory.NewStore().Repositories()
	_, admin := testutil.CreateTestOrg(t, repos, "Acme")
	return NewService(repos.Pipelines, audit.NewNop()), repos, admin
}

func stages(names ...string) []model.StageRequest {
	out := make([]model.StageRequest, len(names))
	for i, n := range names {
		out[i] = model.StageRequest{Name: n, Order: i}
	}
	return out
}

func countDefaults(t *testing.T, svc *Service, orgID uuid.UUID) int {
	t.Helper()
	all, err := svc.List(context.Background(), orgID, true)
	require.NoError(t, err)
	n := 0
	for _, p := range all {
		if p.IsDefault {
			n++
		}
	}
	return n
}

func TestCreateValidation(t *testing.T) {
	svc, _, admin := setup(t)
	ctx := context.Background()

	dup := stages("Lead", "Qualified")
	dup[1].Order = 0
	_, err := svc.Create(ctx, admin, &model.CreatePipelineRequest{Name: "Sales", Stages: dup})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	both := stages("Closed")
	both[0].IsWon, both[0].IsLost = true, true
	_, err = svc.Create(ctx, admin, &model.CreatePipelineRequest{Name: "Sales", Stages: both})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	p, err := svc.Create(ctx, admin, &model.CreatePipelineRequest{Name: "Sales", Stages: stages("Lead", "Won")})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultStageColor, p.Color)
	require.Len(t, p.Stages, 2)
	assert.Equal(t, model.DefaultExpectedDurationDays, p.Stages[0].ExpectedDurationDays)
}

func TestSingleDefault(t *testing.T) {
	svc, _, admin := setup(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, admin, &model.CreatePipelineRequest{Name: "A", IsDefault: true})
	require.NoError(t, err)
	second, err := svc.Create(ctx, admin, &model.CreatePipelineRequest{Name: "B", IsDefault: true})
	require.NoError(t, err)
	assert.Equal(t, 1, countDefaults(t, svc, admin.OrganizationID))

	_, err = svc.SetDefault(ctx, admin, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, countDefaults(t, svc, admin.OrganizationID))

	err = svc.Delete(ctx, admin, first.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	require.NoError(t, svc.Delete(ctx, admin, second.ID))
	_, err = svc.SetDefault(ctx, admin, second.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	active, err := svc.List(ctx, admin.OrganizationID, false)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	yes := true
	_, err = svc.Update(ctx, admin, second.ID, &model.UpdatePipelineRequest{IsDefault: &yes})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	_, err = svc.Update(ctx, admin, second.ID, &model.UpdatePipelineRequest{IsActive: &yes, IsDefault: &yes})
	require.NoError(t, err)
	assert.Equal(t, 1, countDefaults(t, svc, admin.OrganizationID))
}

func TestCrossTenantPipelineIsNotFound(t *testing.T) {
	svc, repos, admin := setup(t)
	_, outsider := testutil.CreateTestOrg(t, repos, "Other")
	p, err := svc.Create(context.Background(), admin, &model.CreatePipelineRequest{Name: "Sales"})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), outsider.OrganizationID, p.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	_, err = svc.AddStage(context.Background(), outsider, p.ID, &model.StageRequest{Name: "X"})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestStageCRUD(t *testing.T) {
	svc, repos, admin := setup(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, admin, &model.CreatePipelineRequest{Name: "Sales", Stages: stages("Lead", "Won")})
	require.NoError(t, err)

	added, err := svc.AddStage(ctx, admin, p.ID, &model.StageRequest{Name: "Lost", Order: 2, IsLost: true})
	require.NoError(t, err)

	_, err = svc.AddStage(ctx, admin, p.ID, &model.StageRequest{Name: "Clash", Order: 2})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	won := true
	_, err = svc.UpdateStage(ctx, admin, p.ID, added.ID, &model.UpdateStageRequest{IsWon: &won})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	name := "Closed lost"
	updated, err := svc.UpdateStage(ctx, admin, p.ID, added.ID, &model.UpdateStageRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)

	lead := p.Stages[0]
	now := time.Now().UTC()
	opp := &model.Opportunity{
		Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		OrganizationID: admin.OrganizationID,
		PipelineID:     p.ID,
		StageID:        lead.ID,
		UserID:         admin.ID,
		Title:          "Deal",
		Status:         model.OpportunityStatusOpen,
	}
	require.NoError(t, repos.Opportunities.Create(ctx, opp, &model.StageHistory{ID: uuid.New(), OpportunityID: opp.ID, ToStageID: lead.ID, UserID: admin.ID, ChangedAt: now}))

	err = svc.DeleteStage(ctx, admin, p.ID, lead.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	require.NoError(t, svc.DeleteStage(ctx, admin, p.ID, added.ID))
	err = svc.DeleteStage(ctx, admin, p.ID, added.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestReorderStages(t *testing.T) {
	svc, _, admin := setup(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, admin, &model.CreatePipelineRequest{Name: "Sales", Stages: stages("A", "B", "C")})
	require.NoError(t, err)
	a, b, c := p.Stages[0].ID, p.Stages[1].ID, p.Stages[2].ID

	for name, ids := range map[string][]uuid.UUID{
		"missing":   {a, b},
		"extra":     {a, b, c, uuid.New()},
		"duplicate": {a, a, b},
		"foreign":   {a, b, uuid.New()},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ReorderStages(ctx, admin, p.ID, ids)
			assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
		})
	}

	got, err := svc.ReorderStages(ctx, admin, p.ID, []uuid.UUID{c, a, b})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []uuid.UUID{c, a, b}, []uuid.UUID{got[0].ID, got[1].ID, got[2].ID})
	for i, st := range got {
		assert.Equal(t, i, st.Order)
	}
}
