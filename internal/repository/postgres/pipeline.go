package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

const (
	pipelineColumns = `id, organization_id, name, description, color, is_active, is_default, created_at, updated_at`
	stageColumns    = `id, pipeline_id, name, description, color, stage_order, probability,
		expected_duration_days, is_won, is_lost, created_at, updated_at`
)

type pipelineRepository struct {
	BaseRepository
}

func NewPipelineRepository(base BaseRepository) repository.PipelineRepository {
	return &pipelineRepository{base}
}

func clearDefault(ctx context.Context, tx *sqlx.Tx, orgID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE pipelines SET is_default = FALSE, updated_at = NOW() WHERE organization_id = $1 AND is_default = TRUE`,
		orgID)
	return wrap("clear default pipeline", err)
}

func insertStage(ctx context.Context, ext sqlx.ExecerContext, s *model.PipelineStage) error {
	query := `
		INSERT INTO pipeline_stages (
			id, pipeline_id, name, description, color, stage_order, probability,
			expected_duration_days, is_won, is_lost, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := ext.ExecContext(ctx, query,
		s.ID,
		s.PipelineID,
		s.Name,
		s.Description,
		s.Color,
		s.Order,
		s.Probability,
		s.ExpectedDurationDays,
		s.IsWon,
		s.IsLost,
		s.CreatedAt,
		s.UpdatedAt,
	)
	return wrap("create stage", err)
}

func (r *pipelineRepository) Create(ctx context.Context, p *model.Pipeline) error {
	query := `
		INSERT INTO pipelines (
			id, organization_id, name, description, color, is_active, is_default, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if p.IsDefault {
			if err := clearDefault(ctx, tx, p.OrganizationID); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, query,
			p.ID,
			p.OrganizationID,
			p.Name,
			p.Description,
			p.Color,
			p.IsActive,
			p.IsDefault,
			p.CreatedAt,
			p.UpdatedAt,
		); err != nil {
			return wrap("create pipeline", err)
		}

		for i := range p.Stages {
			if err := insertStage(ctx, tx, &p.Stages[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *pipelineRepository) stagesFor(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]model.PipelineStage, error) {
	out := make(map[uuid.UUID][]model.PipelineStage, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	query := `SELECT ` + stageColumns + ` FROM pipeline_stages WHERE pipeline_id = ANY($1::uuid[]) ORDER BY stage_order`
	var stages []model.PipelineStage
	if err := r.db.SelectContext(ctx, &stages, query, pq.Array(keys)); err != nil {
		return nil, wrap("list stages", err)
	}
	for _, s := range stages {
		out[s.PipelineID] = append(out[s.PipelineID], s)
	}
	return out, nil
}

func (r *pipelineRepository) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Pipeline, error) {
	query := `SELECT ` + pipelineColumns + ` FROM pipelines WHERE id = $1 AND organization_id = $2`

	var p model.Pipeline
	if err := r.db.GetContext(ctx, &p, query, id, orgID); err != nil {
		return nil, wrap("get pipeline", err)
	}

	stages, err := r.stagesFor(ctx, []uuid.UUID{p.ID})
	if err != nil {
		return nil, err
	}
	p.Stages = stages[p.ID]
	return &p, nil
}

func (r *pipelineRepository) List(ctx context.Context, orgID uuid.UUID, includeInactive bool) ([]*model.Pipeline, error) {
	query := `
		SELECT ` + pipelineColumns + `
		FROM pipelines
		WHERE organization_id = $1 AND ($2 OR is_active = TRUE)
		ORDER BY is_default DESC, name
	`
	var pipelines []*model.Pipeline
	if err := r.db.SelectContext(ctx, &pipelines, query, orgID, includeInactive); err != nil {
		return nil, wrap("list pipelines", err)
	}

	ids := make([]uuid.UUID, len(pipelines))
	for i, p := range pipelines {
		ids[i] = p.ID
	}
	stages, err := r.stagesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range pipelines {
		p.Stages = stages[p.ID]
	}
	return pipelines, nil
}

func (r *pipelineRepository) Update(ctx context.Context, p *model.Pipeline) error {
	query := `
		UPDATE pipelines
		SET name = $1, description = $2, color = $3, is_active = $4, is_default = $5, updated_at = $6
		WHERE id = $7 AND organization_id = $8
	`

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if p.IsDefault {
			if _, err := tx.ExecContext(ctx,
				`UPDATE pipelines SET is_default = FALSE, updated_at = NOW()
				 WHERE organization_id = $1 AND is_default = TRUE AND id <> $2`,
				p.OrganizationID, p.ID); err != nil {
				return wrap("clear default pipeline", err)
			}
		}

		res, err := tx.ExecContext(ctx, query,
			p.Name,
			p.Description,
			p.Color,
			p.IsActive,
			p.IsDefault,
			p.UpdatedAt,
			p.ID,
			p.OrganizationID,
		)
		if err != nil {
			return wrap("update pipeline", err)
		}
		return requireAffected(res, "update pipeline")
	})
}

func (r *pipelineRepository) SetDefault(ctx context.Context, orgID, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := clearDefault(ctx, tx, orgID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE pipelines SET is_default = TRUE, updated_at = NOW() WHERE id = $1 AND organization_id = $2`,
			id, orgID)
		if err != nil {
			return wrap("set default pipeline", err)
		}
		return requireAffected(res, "set default pipeline")
	})
}

func (r *pipelineRepository) GetStage(ctx context.Context, pipelineID, stageID uuid.UUID) (*model.PipelineStage, error) {
	query := `SELECT ` + stageColumns + ` FROM pipeline_stages WHERE id = $1 AND pipeline_id = $2`

	var s model.PipelineStage
	if err := r.db.GetContext(ctx, &s, query, stageID, pipelineID); err != nil {
		return nil, wrap("get stage", err)
	}
	return &s, nil
}

func (r *pipelineRepository) CreateStage(ctx context.Context, s *model.PipelineStage) error {
	return insertStage(ctx, r.db, s)
}

func (r *pipelineRepository) UpdateStage(ctx context.Context, s *model.PipelineStage) error {
	query := `
		UPDATE pipeline_stages
		SET name = $1, description = $2, color = $3, probability = $4,
			expected_duration_days = $5, is_won = $6, is_lost = $7, updated_at = $8
		WHERE id = $9 AND pipeline_id = $10
	`
	res, err := r.db.ExecContext(ctx, query,
		s.Name,
		s.Description,
		s.Color,
		s.Probability,
		s.ExpectedDurationDays,
		s.IsWon,
		s.IsLost,
		s.UpdatedAt,
		s.ID,
		s.PipelineID,
	)
	if err != nil {
		return wrap("update stage", err)
	}
	return requireAffected(res, "update stage")
}

func (r *pipelineRepository) DeleteStage(ctx context.Context, pipelineID, stageID uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var inUse bool
		if err := tx.GetContext(ctx, &inUse,
			`SELECT EXISTS (SELECT 1 FROM opportunities WHERE stage_id = $1)`, stageID); err != nil {
			return wrap("check stage usage", err)
		}
		if inUse {
			return fmt.Errorf("failed to delete stage: %w", repository.ErrInUse)
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM pipeline_stages WHERE id = $1 AND pipeline_id = $2`, stageID, pipelineID)
		if err != nil {
			return wrap("delete stage", err)
		}
		return requireAffected(res, "delete stage")
	})
}

func (r *pipelineRepository) ReorderStages(ctx context.Context, pipelineID uuid.UUID, stageIDs []uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SET CONSTRAINTS pipeline_stages_order_key DEFERRED`); err != nil {
			return wrap("defer stage order constraint", err)
		}
		for i, id := range stageIDs {
			res, err := tx.ExecContext(ctx,
				`UPDATE pipeline_stages SET stage_order = $1, updated_at = NOW() WHERE id = $2 AND pipeline_id = $3`,
				i, id, pipelineID)
			if err != nil {
				return wrap("reorder stages", err)
			}
			if err := requireAffected(res, "reorder stages"); err != nil {
				return err
			}
		}
		return nil
	})
}
