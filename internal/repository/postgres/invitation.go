package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

const invitationColumns = `id, organization_id, invited_by_user_id, email, token, role, custom_permissions,
	expires_at, is_accepted, created_at`

type invitationRepository struct {
	BaseRepository
}

func NewInvitationRepository(base BaseRepository) repository.InvitationRepository {
	return &invitationRepository{base}
}

func (r *invitationRepository) Create(ctx context.Context, inv *model.Invitation) error {
	query := `
		INSERT INTO invitations (
			id, organization_id, invited_by_user_id, email, token, role,
			custom_permissions, expires_at, is_accepted, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		inv.ID,
		inv.OrganizationID,
		inv.InvitedByUserID,
		inv.Email,
		inv.Token,
		inv.Role,
		inv.CustomPermissions,
		inv.ExpiresAt,
		inv.IsAccepted,
		inv.CreatedAt,
	)
	return wrap("create invitation", err)
}

func (r *invitationRepository) GetPendingByEmail(ctx context.Context, orgID uuid.UUID, email string, now time.Time) (*model.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE organization_id = $1 AND email = $2 AND is_accepted = FALSE AND expires_at > $3
		LIMIT 1
	`
	var inv model.Invitation
	if err := r.db.GetContext(ctx, &inv, query, orgID, email, now); err != nil {
		return nil, wrap("get pending invitation", err)
	}
	return &inv, nil
}

func (r *invitationRepository) GetByToken(ctx context.Context, token string) (*model.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE token = $1`

	var inv model.Invitation
	if err := r.db.GetContext(ctx, &inv, query, token); err != nil {
		return nil, wrap("get invitation", err)
	}
	return &inv, nil
}

func (r *invitationRepository) ListPending(ctx context.Context, orgID uuid.UUID, now time.Time) ([]*model.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE organization_id = $1 AND is_accepted = FALSE AND expires_at > $2
		ORDER BY created_at DESC
	`
	var out []*model.Invitation
	if err := r.db.SelectContext(ctx, &out, query, orgID, now); err != nil {
		return nil, wrap("list invitations", err)
	}
	return out, nil
}

func (r *invitationRepository) Cancel(ctx context.Context, orgID, id uuid.UUID, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invitations SET expires_at = $1 WHERE id = $2 AND organization_id = $3 AND is_accepted = FALSE`,
		now, id, orgID)
	if err != nil {
		return wrap("cancel invitation", err)
	}
	return requireAffected(res, "cancel invitation")
}

func (r *invitationRepository) Accept(ctx context.Context, token string, now time.Time, fn func(*model.Invitation) (*model.User, error)) (*model.Invitation, *model.User, error) {
	var (
		inv  model.Invitation
		user *model.User
	)

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE invitations
			SET is_accepted = TRUE
			WHERE token = $1 AND is_accepted = FALSE AND expires_at > $2
			RETURNING ` + invitationColumns
		if err := tx.GetContext(ctx, &inv, query, token, now); err != nil {
			return wrap("accept invitation", err)
		}

		u, err := fn(&inv)
		if err != nil {
			return err
		}
		if err := insertUser(ctx, tx, u); err != nil {
			return wrap("create user", err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &inv, user, nil
}

var _ repository.InvitationRepository = (*invitationRepository)(nil)
