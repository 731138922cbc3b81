package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

const interactionColumns = `i.id, i.customer_id, i.user_id, i.type, i.date_time, i.duration_minutes, i.notes,
	i.outcome, i.requires_followup, i.followup_date, i.followup_type, i.followup_notes,
	i.followup_completed, i.followup_completed_date, i.created_at, i.updated_at`

type interactionRepository struct {
	BaseRepository
}

func NewInteractionRepository(base BaseRepository) repository.InteractionRepository {
	return &interactionRepository{base}
}

func (r *interactionRepository) Create(ctx context.Context, orgID uuid.UUID, i *model.Interaction) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE customers SET last_interaction = $1, updated_at = NOW() WHERE id = $2 AND organization_id = $3`,
			i.DateTime, i.CustomerID, orgID)
		if err != nil {
			return wrap("touch customer", err)
		}
		if err := requireAffected(res, "touch customer"); err != nil {
			return err
		}

		query := `
			INSERT INTO interactions (
				id, customer_id, user_id, type, date_time, duration_minutes, notes, outcome,
				requires_followup, followup_date, followup_type, followup_notes,
				followup_completed, followup_completed_date, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`
		_, err = tx.ExecContext(ctx, query,
			i.ID,
			i.CustomerID,
			i.UserID,
			i.Type,
			i.DateTime,
			i.DurationMinutes,
			i.Notes,
			i.Outcome,
			i.RequiresFollowup,
			i.FollowupDate,
			i.FollowupType,
			i.FollowupNotes,
			i.FollowupCompleted,
			i.FollowupCompletedDate,
			i.CreatedAt,
			i.UpdatedAt,
		)
		return wrap("create interaction", err)
	})
}

func (r *interactionRepository) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Interaction, error) {
	query := `
		SELECT ` + interactionColumns + `
		FROM interactions i
		JOIN customers c ON c.id = i.customer_id
		WHERE i.id = $1 AND c.organization_id = $2
	`
	var i model.Interaction
	if err := r.db.GetContext(ctx, &i, query, id, orgID); err != nil {
		return nil, wrap("get interaction", err)
	}
	return &i, nil
}

func (r *interactionRepository) List(ctx context.Context, f model.InteractionFilter) ([]*model.Interaction, int, error) {
	where := []string{"c.organization_id = $1"}
	args := []interface{}{f.OrganizationID}

	if f.CustomerID != nil {
		args = append(args, *f.CustomerID)
		where = append(where, fmt.Sprintf("i.customer_id = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		where = append(where, fmt.Sprintf("i.type = $%d", len(args)))
	}
	if f.RequiresFollowup != nil {
		args = append(args, *f.RequiresFollowup)
		where = append(where, fmt.Sprintf("i.requires_followup = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("i.date_time >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("i.date_time <= $%d", len(args)))
	}
	from := ` FROM interactions i JOIN customers c ON c.id = i.customer_id WHERE ` + strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*)`+from, args...); err != nil {
		return nil, 0, wrap("count interactions", err)
	}

	query := fmt.Sprintf(`SELECT %s%s ORDER BY i.date_time DESC LIMIT $%d OFFSET $%d`,
		interactionColumns, from, len(args)+1, len(args)+2)
	args = append(args, f.Limit(), f.Offset())

	var out []*model.Interaction
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, 0, wrap("list interactions", err)
	}
	return out, total, nil
}

func (r *interactionRepository) Update(ctx context.Context, i *model.Interaction) error {
	query := `
		UPDATE interactions
		SET type = $1, date_time = $2, duration_minutes = $3, notes = $4, outcome = $5,
			requires_followup = $6, followup_date = $7, followup_type = $8, followup_notes = $9,
			followup_completed = $10, followup_completed_date = $11, updated_at = $12
		WHERE id = $13
	`
	res, err := r.db.ExecContext(ctx, query,
		i.Type,
		i.DateTime,
		i.DurationMinutes,
		i.Notes,
		i.Outcome,
		i.RequiresFollowup,
		i.FollowupDate,
		i.FollowupType,
		i.FollowupNotes,
		i.FollowupCompleted,
		i.FollowupCompletedDate,
		i.UpdatedAt,
		i.ID,
	)
	if err != nil {
		return wrap("update interaction", err)
	}
	return requireAffected(res, "update interaction")
}

func (r *interactionRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	query := `
		DELETE FROM interactions i
		USING customers c
		WHERE i.id = $1 AND c.id = i.customer_id AND c.organization_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, orgID)
	if err != nil {
		return wrap("delete interaction", err)
	}
	return requireAffected(res, "delete interaction")
}

func (r *interactionRepository) PendingFollowups(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]*model.Interaction, error) {
	query := `
		SELECT ` + interactionColumns + `
		FROM interactions i
		JOIN customers c ON c.id = i.customer_id
		WHERE c.organization_id = $1
			AND i.requires_followup = TRUE
			AND i.followup_completed = FALSE
			AND i.followup_date BETWEEN $2 AND $3
		ORDER BY i.followup_date ASC
	`
	var out []*model.Interaction
	if err := r.db.SelectContext(ctx, &out, query, orgID, from, to); err != nil {
		return nil, wrap("list pending followups", err)
	}
	return out, nil
}
