package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

const (
	opportunityColumns = `id, organization_id, pipeline_id, stage_id, customer_id, user_id, title, description,
		value, currency, source, custom_fields, status, expected_close_date, last_stage_change,
		created_at, updated_at`
	historyColumns = `id, opportunity_id, from_stage_id, to_stage_id, user_id, changed_at, notes, time_in_stage`
)

type opportunityRepository struct {
	BaseRepository
}

func NewOpportunityRepository(base BaseRepository) repository.OpportunityRepository {
	return &opportunityRepository{base}
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, h *model.StageHistory) error {
	query := `
		INSERT INTO stage_history (
			id, opportunity_id, from_stage_id, to_stage_id, user_id, changed_at, notes, time_in_stage
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.ExecContext(ctx, query,
		h.ID,
		h.OpportunityID,
		h.FromStageID,
		h.ToStageID,
		h.UserID,
		h.ChangedAt,
		h.Notes,
		h.TimeInStage,
	)
	return wrap("insert stage history", err)
}

func (r *opportunityRepository) Create(ctx context.Context, o *model.Opportunity, initial *model.StageHistory) error {
	query := `
		INSERT INTO opportunities (
			id, organization_id, pipeline_id, stage_id, customer_id, user_id, title, description,
			value, currency, source, custom_fields, status, expected_close_date, last_stage_change,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, query,
			o.ID,
			o.OrganizationID,
			o.PipelineID,
			o.StageID,
			o.CustomerID,
			o.UserID,
			o.Title,
			o.Description,
			o.Value,
			o.Currency,
			o.Source,
			o.CustomFields,
			o.Status,
			o.ExpectedCloseDate,
			o.LastStageChange,
			o.CreatedAt,
			o.UpdatedAt,
		); err != nil {
			return wrap("create opportunity", err)
		}
		return insertHistory(ctx, tx, initial)
	})
}

func (r *opportunityRepository) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE id = $1 AND organization_id = $2`

	var o model.Opportunity
	if err := r.db.GetContext(ctx, &o, query, id, orgID); err != nil {
		return nil, wrap("get opportunity", err)
	}
	return &o, nil
}

func (r *opportunityRepository) List(ctx context.Context, f model.OpportunityFilter) ([]*model.Opportunity, int, error) {
	where := []string{"organization_id = $1"}
	args := []interface{}{f.OrganizationID}

	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.PipelineID != nil {
		add("pipeline_id = $%d", *f.PipelineID)
	}
	if f.StageID != nil {
		add("stage_id = $%d", *f.StageID)
	}
	if f.CustomerID != nil {
		add("customer_id = $%d", *f.CustomerID)
	}
	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Search != "" {
		add("title ILIKE $%d", "%"+f.Search+"%")
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM opportunities WHERE `+clause, args...); err != nil {
		return nil, 0, wrap("count opportunities", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM opportunities WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		opportunityColumns, clause, len(args)+1, len(args)+2)
	args = append(args, f.Limit(), f.Offset())

	var out []*model.Opportunity
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, 0, wrap("list opportunities", err)
	}
	return out, total, nil
}

func (r *opportunityRepository) Update(ctx context.Context, o *model.Opportunity) error {
	query := `
		UPDATE opportunities
		SET customer_id = $1, user_id = $2, title = $3, description = $4, value = $5, currency = $6,
			source = $7, custom_fields = $8, expected_close_date = $9, updated_at = $10
		WHERE id = $11 AND organization_id = $12
	`
	res, err := r.db.ExecContext(ctx, query,
		o.CustomerID,
		o.UserID,
		o.Title,
		o.Description,
		o.Value,
		o.Currency,
		o.Source,
		o.CustomFields,
		o.ExpectedCloseDate,
		o.UpdatedAt,
		o.ID,
		o.OrganizationID,
	)
	if err != nil {
		return wrap("update opportunity", err)
	}
	return requireAffected(res, "update opportunity")
}

func (r *opportunityRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM opportunities WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		return wrap("delete opportunity", err)
	}
	return requireAffected(res, "delete opportunity")
}

func (r *opportunityRepository) ChangeStage(ctx context.Context, orgID, id uuid.UUID, fn func(*model.Opportunity) (*model.StageHistory, error)) (*model.Opportunity, *model.StageHistory, error) {
	var (
		opp   model.Opportunity
		entry *model.StageHistory
	)

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		lock := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE id = $1 AND organization_id = $2 FOR UPDATE`
		if err := tx.GetContext(ctx, &opp, lock, id, orgID); err != nil {
			return wrap("lock opportunity", err)
		}

		readStage := opp.StageID
		h, err := fn(&opp)
		if err != nil {
			return err
		}
		if h == nil {
			return nil
		}

		update := `
			UPDATE opportunities
			SET stage_id = $1, status = $2, last_stage_change = $3, updated_at = $4
			WHERE id = $5 AND stage_id = $6
		`
		res, err := tx.ExecContext(ctx, update,
			opp.StageID, opp.Status, opp.LastStageChange, opp.UpdatedAt, opp.ID, readStage)
		if err != nil {
			return wrap("change stage", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return wrap("change stage", err)
		}
		if n == 0 {
			return fmt.Errorf("failed to change stage: %w", repository.ErrStaleWrite)
		}

		if err := insertHistory(ctx, tx, h); err != nil {
			return err
		}
		entry = h
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &opp, entry, nil
}

func (r *opportunityRepository) History(ctx context.Context, opportunityID uuid.UUID) ([]*model.StageHistory, error) {
	query := `SELECT ` + historyColumns + ` FROM stage_history WHERE opportunity_id = $1 ORDER BY changed_at DESC`

	var out []*model.StageHistory
	if err := r.db.SelectContext(ctx, &out, query, opportunityID); err != nil {
		return nil, wrap("list stage history", err)
	}
	return out, nil
}
