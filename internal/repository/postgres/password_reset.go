package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

type passwordResetRepository struct {
	BaseRepository
}

func NewPasswordResetRepository(base BaseRepository) repository.PasswordResetRepository {
	return &passwordResetRepository{base}
}

func (r *passwordResetRepository) Create(ctx context.Context, reset *model.PasswordReset) error {
	query := `
		INSERT INTO password_resets (id, user_id, token, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		reset.ID, reset.UserID, reset.Token, reset.ExpiresAt, reset.Used, reset.CreatedAt)
	return wrap("create password reset", err)
}

func (r *passwordResetRepository) GetByToken(ctx context.Context, token string) (*model.PasswordReset, error) {
	query := `SELECT id, user_id, token, expires_at, used, created_at FROM password_resets WHERE token = $1`

	var reset model.PasswordReset
	if err := r.db.GetContext(ctx, &reset, query, token); err != nil {
		return nil, wrap("get password reset", err)
	}
	return &reset, nil
}

func (r *passwordResetRepository) Consume(ctx context.Context, token string, now time.Time, passwordHash string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE password_resets
			SET used = TRUE
			WHERE token = $1 AND used = FALSE AND expires_at > $2
			RETURNING user_id
		`
		if err := tx.QueryRowxContext(ctx, query, token, now).Scan(&userID); err != nil {
			return wrap("consume password reset", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`, passwordHash, now, userID)
		if err != nil {
			return wrap("update password", err)
		}
		return requireAffected(res, "update password")
	})
	if err != nil {
		return uuid.Nil, err
	}
	return userID, nil
}

func (r *passwordResetRepository) DeleteStale(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM password_resets WHERE used = TRUE OR expires_at <= $1`, now)
	if err != nil {
		return 0, wrap("delete stale password resets", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("delete stale password resets", err)
	}
	return n, nil
}
