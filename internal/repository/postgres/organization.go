package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

const organizationColumns = `id, name, industry_type, subscription_plan, active_until, settings, is_active, created_at, updated_at`

type organizationRepository struct {
	BaseRepository
}

func NewOrganizationRepository(base BaseRepository) repository.OrganizationRepository {
	return &organizationRepository{base}
}

func (r *organizationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`

	var org model.Organization
	if err := r.db.GetContext(ctx, &org, query, id); err != nil {
		return nil, wrap("get organization", err)
	}
	return &org, nil
}

func (r *organizationRepository) Update(ctx context.Context, org *model.Organization) error {
	query := `
		UPDATE organizations
		SET name = $1, industry_type = $2, settings = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query, org.Name, org.IndustryType, org.Settings, org.ID).Scan(&org.UpdatedAt); err != nil {
		return wrap("update organization", err)
	}
	return nil
}
