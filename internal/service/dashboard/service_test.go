package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository/memory"
	"github.com/jwalitptl/crm-api/internal/testutil"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

func TestOverview(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewStore().Repositories()
	_, admin := testutil.CreateTestOrg(t, repos, "Acme")
	orgID := admin.OrganizationID

	vip := "vip"
	c1 := testutil.CreateTestCustomer(t, repos, orgID, "Ada")
	c1.Segment = &vip
	require.NoError(t, repos.Customers.Update(ctx, c1))
	testutil.CreateTestCustomer(t, repos, orgID, "Bob")
	inactive := testutil.CreateTestCustomer(t, repos, orgID, "Cy")
	inactive.Status = model.CustomerStatusInactive
	require.NoError(t, repos.Customers.Update(ctx, inactive))

	now := time.Now().UTC()
	p := &model.Pipeline{
		Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		OrganizationID: orgID,
		Name:           "Sales",
		IsActive:       true,
		Stages: []model.PipelineStage{
			{Base: model.Base{ID: uuid.New()}, Name: "Lead", Order: 0},
			{Base: model.Base{ID: uuid.New()}, Name: "Won", Order: 1, IsWon: true},
		},
	}
	for i := range p.Stages {
		p.Stages[i].PipelineID = p.ID
	}
	require.NoError(t, repos.Pipelines.Create(ctx, p))

	addOpp := func(stage model.PipelineStage, value float64) {
		o := &model.Opportunity{
			Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
			OrganizationID: orgID,
			PipelineID:     p.ID,
			StageID:        stage.ID,
			UserID:         admin.ID,
			Title:          "Deal",
			Value:          value,
			Status:         stage.Status(),
		}
		require.NoError(t, repos.Opportunities.Create(ctx, o, &model.StageHistory{ID: uuid.New(), OpportunityID: o.ID, ToStageID: stage.ID, UserID: admin.ID, ChangedAt: now}))
	}
	addOpp(p.Stages[0], 100)
	addOpp(p.Stages[0], 50)
	addOpp(p.Stages[1], 999)

	require.NoError(t, repos.Interactions.Create(ctx, orgID, &model.Interaction{
		Base:       model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		CustomerID: c1.ID,
		UserID:     admin.ID,
		Type:       "call",
		DateTime:   now.Add(-time.Hour),
	}))

	svc := NewService(repos.Dashboard)
	out, err := svc.Overview(ctx, orgID, "")
	require.NoError(t, err)

	assert.Equal(t, model.PeriodMonth, out.Period)
	assert.Equal(t, 2, out.ActiveCustomers)
	assert.Equal(t, 2, out.OpenOpportunities)
	assert.Equal(t, 1, out.WonOpportunities)
	assert.Equal(t, 150.0, out.PipelineValue)
	assert.Equal(t, 1, out.InteractionsInPeriod)
	assert.ElementsMatch(t, []model.SegmentCount{{Segment: "unassigned", Count: 1}, {Segment: "vip", Count: 1}}, out.CustomersBySegment)
	require.Len(t, out.OpportunitiesByStage, 1)
	assert.Equal(t, "Lead", out.OpportunitiesByStage[0].StageName)
	assert.Equal(t, 2, out.OpportunitiesByStage[0].Count)

	_, err = svc.Overview(ctx, orgID, "decade")
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	empty, err := svc.Overview(ctx, uuid.New(), model.PeriodWeek)
	require.NoError(t, err)
	assert.NotNil(t, empty.OpportunitiesByStage)
	assert.Zero(t, empty.ActiveCustomers)
}
