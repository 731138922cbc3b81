package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/service/audit"
	"github.com/jwalitptl/crm-api/internal/service/event"
	"github.com/jwalitptl/crm-api/internal/service/notification"
	"github.com/jwalitptl/crm-api/internal/service/session"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const resetTokenExpiry = 24 * time.Hour

type Service struct {
	users    repository.UserRepository
	resets   repository.PasswordResetRepository
	sessions *session.Service
	hasher   security.PasswordHasher
	tokens   security.TokenGenerator
	notifier notification.Service
	events   event.Emitter
	auditor  *audit.Service
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(
	users repository.UserRepository,
	resets repository.PasswordResetRepository,
	sessions *session.Service,
	hasher security.PasswordHasher,
	notifier notification.Service,
	events event.Emitter,
	auditor *audit.Service,
	logger *logger.Logger,
) *Service {
	return &Service{
		users:    users,
		resets:   resets,
		sessions: sessions,
		hasher:   hasher,
		tokens:   security.NewURLToken,
		notifier: notifier,
		events:   events,
		auditor:  auditor,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func invalidCredentials() error {
	return &apperrors.AppError{
		Code:    apperrors.ErrUnauthorized,
		Message: "invalid email or password",
		Err:     ErrInvalidCredentials,
	}
}

func (s *Service) hash(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, security.ErrPasswordTooShort) {
		return "", apperrors.BadRequest(err.Error(), err)
	}
	if err != nil {
		return "", apperrors.Internal(err)
	}
	return hash, nil
}

// Register creates an organization with its first admin and signs them in
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest, client model.ClientInfo) (*model.TokenResponse, error) {
	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}

	org := model.NewOrganization(req.OrganizationName)
	now := s.now()
	user := &model.User{
		Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		OrganizationID: org.ID,
		Email:          model.NormalizeEmail(req.Email),
		PasswordHash:   hash,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Role:           model.RoleAdmin,
		IsActive:       true,
	}

	if err := s.users.CreateWithOrganization(ctx, org, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("email already registered", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to register: %w", err))
	}

	resp, _, err := s.sessions.IssueSession(ctx, user, client)
	if err != nil {
		return nil, err
	}

	if err := s.events.Emit(ctx, model.EventUserRegistered, map[string]interface{}{
		"user_id":         user.ID,
		"organization_id": org.ID,
		"email":           user.Email,
	}); err != nil {
		s.logger.Error(err, "Failed to emit registration event", "user_id", user.ID.String())
	}
	s.notifier.SendWelcome(ctx, user.Email, user.FirstName)
	s.auditor.Log(ctx, user.ID, org.ID, "register", "user", user.ID, &audit.LogOptions{IPAddress: client.IPAddress})

	return resp, nil
}

// Login verifies credentials and issues a session. Every failure looks the same to the caller.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest, client model.ClientInfo) (*model.TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, model.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidCredentials()
		}
		return nil, apperrors.Internal(err)
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, invalidCredentials()
	}
	if !user.IsActive {
		return nil, invalidCredentials()
	}

	resp, _, err := s.sessions.IssueSession(ctx, user, client)
	if err != nil {
		return nil, err
	}
	s.auditor.Log(ctx, user.ID, user.OrganizationID, "login", "user", user.ID, &audit.LogOptions{IPAddress: client.IPAddress})
	return resp, nil
}

func (s *Service) Logout(ctx context.Context, user *model.User, token string) error {
	if err := s.sessions.RevokeByToken(ctx, token); err != nil {
		return err
	}
	s.auditor.Log(ctx, user.ID, user.OrganizationID, "logout", "user", user.ID, nil)
	return nil
}

// ForgotPassword stores a reset token and mails it when the address belongs to a user.
// It succeeds either way so callers cannot probe for accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return apperrors.Internal(err)
	}
	if !user.IsActive {
		return nil
	}

	token, err := s.tokens()
	if err != nil {
		return apperrors.Internal(err)
	}
	now := s.now()
	reset := &model.PasswordReset{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: now.Add(resetTokenExpiry),
		CreatedAt: now,
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return apperrors.Internal(fmt.Errorf("failed to store reset token: %w", err))
	}

	s.notifier.SendPasswordReset(ctx, user.Email, user.FirstName, token)
	s.auditor.Log(ctx, user.ID, user.OrganizationID, "password_reset_requested", "user", user.ID, nil)
	return nil
}

func (s *Service) ValidateResetToken(ctx context.Context, token string) error {
	reset, err := s.resets.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.BadRequest("invalid or expired reset token", err)
		}
		return apperrors.Internal(err)
	}
	if !reset.IsValid(s.now()) {
		return apperrors.BadRequest("invalid or expired reset token", nil)
	}
	return nil
}

// ResetPassword consumes the token, stores the new hash and signs the user out everywhere
func (s *Service) ResetPassword(ctx context.Context, req *model.ResetPasswordRequest) error {
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.NewPassword {
		return apperrors.BadRequest("passwords do not match", nil)
	}
	hash, err := s.hash(req.NewPassword)
	if err != nil {
		return err
	}

	userID, err := s.resets.Consume(ctx, req.Token, s.now(), hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.BadRequest("invalid or expired reset token", err)
		}
		return apperrors.Internal(err)
	}

	if _, err := s.sessions.RevokeAll(ctx, userID, ""); err != nil {
		return err
	}
	s.auditor.Log(ctx, userID, uuid.Nil, "password_reset", "user", userID, nil)
	return nil
}
