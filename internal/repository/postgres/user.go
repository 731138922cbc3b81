package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

const userColumns = `id, organization_id, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at`

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func insertUser(ctx context.Context, tx *sqlx.Tx, user *model.User) error {
	query := `
		INSERT INTO users (
			id, organization_id, email, password_hash, first_name,
			last_name, role, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := tx.ExecContext(ctx, query,
		user.ID,
		user.OrganizationID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Role,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return err
}

func (r *userRepository) CreateWithOrganization(ctx context.Context, org *model.Organization, user *model.User) error {
	orgQuery := `
		INSERT INTO organizations (
			id, name, industry_type, subscription_plan, settings, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, orgQuery,
			org.ID,
			org.Name,
			org.IndustryType,
			org.SubscriptionPlan,
			org.Settings,
			org.IsActive,
			org.CreatedAt,
			org.UpdatedAt,
		); err != nil {
			return wrap("create organization", err)
		}
		if err := insertUser(ctx, tx, user); err != nil {
			return wrap("create user", err)
		}
		return nil
	})
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, wrap("get user", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, wrap("get user by email", err)
	}
	return &user, nil
}

func (r *userRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID, page model.Pagination) ([]*model.User, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users WHERE organization_id = $1`, orgID); err != nil {
		return nil, 0, wrap("count users", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE organization_id = $1 ORDER BY email LIMIT $2 OFFSET $3`, userColumns)
	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, orgID, page.Limit(), page.Offset()); err != nil {
		return nil, 0, wrap("list users", err)
	}
	return users, total, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET first_name = $1, last_name = $2, role = $3, is_active = $4, password_hash = $5, updated_at = NOW()
		WHERE id = $6
	`
	res, err := r.db.ExecContext(ctx, query,
		user.FirstName,
		user.LastName,
		user.Role,
		user.IsActive,
		user.PasswordHash,
		user.ID,
	)
	if err != nil {
		return wrap("update user", err)
	}
	return requireAffected(res, "update user")
}

func (r *userRepository) SetActive(ctx context.Context, orgID, id uuid.UUID, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2 AND organization_id = $3`,
		active, id, orgID)
	if err != nil {
		return wrap("set user active", err)
	}
	return requireAffected(res, "set user active")
}
