package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

const sessionColumns = `id, user_id, token, device_info, ip_address, last_activity, created_at, expires_at, is_active`

type sessionRepository struct {
	BaseRepository
}

func NewSessionRepository(base BaseRepository) repository.SessionRepository {
	return &sessionRepository{base}
}

func (r *sessionRepository) Create(ctx context.Context, session *model.ActiveSession) error {
	query := `
		INSERT INTO active_sessions (
			id, user_id, token, device_info, ip_address,
			last_activity, created_at, expires_at, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.Token,
		session.DeviceInfo,
		session.IPAddress,
		session.LastActivity,
		session.CreatedAt,
		session.ExpiresAt,
		session.IsActive,
	)
	return wrap("create session", err)
}

func (r *sessionRepository) GetActiveByToken(ctx context.Context, token string, now time.Time) (*model.ActiveSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM active_sessions WHERE token = $1 AND is_active = TRUE AND expires_at > $2`

	var session model.ActiveSession
	if err := r.db.GetContext(ctx, &session, query, token, now); err != nil {
		return nil, wrap("get session", err)
	}
	return &session, nil
}

func (r *sessionRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE active_sessions SET last_activity = $1 WHERE id = $2`, at, id)
	return wrap("touch session", err)
}

func (r *sessionRepository) ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]*model.ActiveSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM active_sessions
		WHERE user_id = $1 AND is_active = TRUE AND expires_at > $2
		ORDER BY last_activity DESC
	`
	var sessions []*model.ActiveSession
	if err := r.db.SelectContext(ctx, &sessions, query, userID, now); err != nil {
		return nil, wrap("list sessions", err)
	}
	return sessions, nil
}

func (r *sessionRepository) Revoke(ctx context.Context, id, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE active_sessions SET is_active = FALSE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return wrap("revoke session", err)
	}
	return requireAffected(res, "revoke session")
}

func (r *sessionRepository) RevokeAll(ctx context.Context, userID uuid.UUID, exceptToken string) (int64, error) {
	query := `
		UPDATE active_sessions
		SET is_active = FALSE
		WHERE user_id = $1 AND is_active = TRUE AND ($2 = '' OR token <> $2)
	`
	res, err := r.db.ExecContext(ctx, query, userID, exceptToken)
	if err != nil {
		return 0, wrap("revoke sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("revoke sessions", err)
	}
	return n, nil
}

func (r *sessionRepository) RevokeByToken(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE active_sessions SET is_active = FALSE WHERE token = $1`, token)
	if err != nil {
		return wrap("revoke session", err)
	}
	return requireAffected(res, "revoke session")
}

func (r *sessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE active_sessions SET is_active = FALSE WHERE is_active = TRUE AND expires_at <= $1`, now)
	if err != nil {
		return 0, wrap("deactivate expired sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("deactivate expired sessions", err)
	}
	return n, nil
}
