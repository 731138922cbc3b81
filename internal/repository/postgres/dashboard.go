package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

type dashboardRepository struct {
	BaseRepository
}

func NewDashboardRepository(base BaseRepository) repository.DashboardRepository {
	return &dashboardRepository{base}
}

func (r *dashboardRepository) Overview(ctx context.Context, orgID uuid.UUID, since time.Time) (*model.DashboardOverview, error) {
	out := &model.DashboardOverview{Since: since}

	totals := `
		SELECT
			(SELECT COUNT(*) FROM customers WHERE organization_id = $1 AND status = 'active') AS active_customers,
			(SELECT COUNT(*) FROM opportunities WHERE organization_id = $1 AND status = 'open') AS open_opportunities,
			(SELECT COUNT(*) FROM opportunities WHERE organization_id = $1 AND status = 'won' AND updated_at >= $2) AS won_opportunities,
			(SELECT COALESCE(SUM(value), 0) FROM opportunities WHERE organization_id = $1 AND status = 'open') AS pipeline_value,
			(SELECT COUNT(*) FROM interactions i JOIN customers c ON c.id = i.customer_id
				WHERE c.organization_id = $1 AND i.date_time >= $2) AS interactions_in_period
	`
	var row struct {
		ActiveCustomers      int     `db:"active_customers"`
		OpenOpportunities    int     `db:"open_opportunities"`
		WonOpportunities     int     `db:"won_opportunities"`
		PipelineValue        float64 `db:"pipeline_value"`
		InteractionsInPeriod int     `db:"interactions_in_period"`
	}
	if err := r.db.GetContext(ctx, &row, totals, orgID, since); err != nil {
		return nil, wrap("load dashboard totals", err)
	}
	out.ActiveCustomers = row.ActiveCustomers
	out.OpenOpportunities = row.OpenOpportunities
	out.WonOpportunities = row.WonOpportunities
	out.PipelineValue = row.PipelineValue
	out.InteractionsInPeriod = row.InteractionsInPeriod

	segments := `
		SELECT COALESCE(NULLIF(segment, ''), 'unassigned') AS segment, COUNT(*) AS count
		FROM customers
		WHERE organization_id = $1 AND status = 'active'
		GROUP BY 1
		ORDER BY 1
	`
	if err := r.db.SelectContext(ctx, &out.CustomersBySegment, segments, orgID); err != nil {
		return nil, wrap("load segment counts", err)
	}

	stages := `
		SELECT s.id AS stage_id, s.name AS stage_name, COUNT(o.id) AS count, COALESCE(SUM(o.value), 0) AS value
		FROM opportunities o
		JOIN pipeline_stages s ON s.id = o.stage_id
		WHERE o.organization_id = $1 AND o.status = 'open'
		GROUP BY s.id, s.name
		ORDER BY s.name
	`
	if err := r.db.SelectContext(ctx, &out.OpportunitiesByStage, stages, orgID); err != nil {
		return nil, wrap("load stage counts", err)
	}
	return out, nil
}
