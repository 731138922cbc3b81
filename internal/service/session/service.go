package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/pkg/auth"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

const (
	maxIssueAttempts = 3
	tokenType        = "Bearer"
)

var ErrSessionInvalid = errors.New("session is not active")

// Service issues, authenticates and revokes session tokens
type Service struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	jwt      auth.JWTService
	ttl      time.Duration
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(
	sessions repository.SessionRepository,
	users repository.UserRepository,
	jwt auth.JWTService,
	ttl time.Duration,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		sessions: sessions,
		users:    users,
		jwt:      jwt,
		ttl:      ttl,
		logger:   logger,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IssueSession signs a token for user and persists the session bound to it.
// A token collision is retried with a fresh token; after the last attempt the
// token is returned without a session and will not pass Authenticate.
func (s *Service) IssueSession(ctx context.Context, user *model.User, client model.ClientInfo) (*model.TokenResponse, *model.ActiveSession, error) {
	var (
		token     string
		expiresAt time.Time
		err       error
	)

	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		token, expiresAt, err = s.jwt.GenerateToken(user.ID, user.OrganizationID, user.Role)
		if err != nil {
			return nil, nil, apperrors.Internal(err)
		}

		now := s.now()
		sess := &model.ActiveSession{
			ID:           uuid.New(),
			UserID:       user.ID,
			Token:        token,
			DeviceInfo:   optional(client.DeviceInfo),
			IPAddress:    optional(client.IPAddress),
			LastActivity: now,
			CreatedAt:    now,
			ExpiresAt:    now.Add(s.ttl),
			IsActive:     true,
		}

		err = s.sessions.Create(ctx, sess)
		if err == nil {
			s.metrics.SessionsIssued.Inc()
			return s.response(token, expiresAt, user), sess, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, apperrors.Internal(fmt.Errorf("failed to create session: %w", err))
		}
		s.logger.Debug("Session token collision", "user_id", user.ID.String(), "attempt", attempt)
	}

	s.metrics.SessionFallbacks.Inc()
	s.logger.Warn("Returning token without a persisted session",
		"user_id", user.ID.String(),
		"attempts", maxIssueAttempts)
	return s.response(token, expiresAt, user), nil, nil
}

func (s *Service) response(token string, expiresAt time.Time, user *model.User) *model.TokenResponse {
	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   tokenType,
		ExpiresAt:   expiresAt,
		User:        user,
	}
}

func (s *Service) reject(reason string, err error) error {
	s.metrics.AuthFailures.WithLabelValues(reason).Inc()
	return apperrors.Unauthorized(err)
}

// Authenticate resolves a bearer token to its user and live session
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, *model.ActiveSession, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return nil, nil, s.reject("invalid_token", err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, nil, s.reject("invalid_token", err)
	}

	now := s.now()
	sess, err := s.sessions.GetActiveByToken(ctx, token, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, s.reject("no_session", ErrSessionInvalid)
		}
		return nil, nil, apperrors.Internal(err)
	}
	if sess.UserID != userID {
		return nil, nil, s.reject("subject_mismatch", ErrSessionInvalid)
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, s.reject("unknown_user", err)
		}
		return nil, nil, apperrors.Internal(err)
	}
	if !user.IsActive {
		return nil, nil, s.reject("inactive_user", errors.New("user is inactive"))
	}

	if err := s.sessions.Touch(ctx, sess.ID, now); err != nil {
		s.logger.Error(err, "Failed to update session activity", "session_id", sess.ID.String())
	} else {
		sess.LastActivity = now
	}
	return user, sess, nil
}

// RevokeSession deactivates one of the caller's sessions
func (s *Service) RevokeSession(ctx context.Context, sessionID, ownerID uuid.UUID) error {
	if err := s.sessions.Revoke(ctx, sessionID, ownerID); err != nil {
		return repository.ToAppError(err, "session")
	}
	s.metrics.SessionsRevoked.Inc()
	return nil
}

// RevokeAll deactivates every active session of the user except the one
// holding exceptToken. An empty exceptToken revokes all of them.
func (s *Service) RevokeAll(ctx context.Context, userID uuid.UUID, exceptToken string) (int64, error) {
	n, err := s.sessions.RevokeAll(ctx, userID, exceptToken)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	s.metrics.SessionsRevoked.Add(float64(n))
	return n, nil
}

// RevokeByToken ends the session bound to token; unknown tokens are ignored
func (s *Service) RevokeByToken(ctx context.Context, token string) error {
	err := s.sessions.RevokeByToken(ctx, token)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apperrors.Internal(err)
	}
	if err == nil {
		s.metrics.SessionsRevoked.Inc()
	}
	return nil
}

func (s *Service) ListActive(ctx context.Context, userID uuid.UUID, currentToken string) ([]model.SessionView, error) {
	sessions, err := s.sessions.ListActive(ctx, userID, s.now())
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	views := make([]model.SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, model.SessionView{
			ID:           sess.ID,
			DeviceInfo:   sess.DeviceInfo,
			IPAddress:    sess.IPAddress,
			LastActivity: sess.LastActivity,
			CreatedAt:    sess.CreatedAt,
			ExpiresAt:    sess.ExpiresAt,
			IsCurrent:    sess.Token == currentToken,
		})
	}
	return views, nil
}
