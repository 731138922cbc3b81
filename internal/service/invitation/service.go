package invitation

import (
	"context"
	"errors"
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

var errInvalidInvitation = errors.New("invitation is invalid or expired")

type Service struct {
	repo     repository.InvitationRepository
	users    repository.UserRepository
	orgs     repository.OrganizationRepository
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
	repo repository.InvitationRepository,
	users repository.UserRepository,
	orgs repository.OrganizationRepository,
	sessions *session.Service,
	hasher security.PasswordHasher,
	notifier notification.Service,
	events event.Emitter,
	auditor *audit.Service,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		orgs:     orgs,
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

func invalidInvitation() error {
	return apperrors.BadRequest(errInvalidInvitation.Error(), errInvalidInvitation)
}

// Create invites email into the admin's organization and mails the link.
func (s *Service) Create(ctx context.Context, actor *model.User, req *model.CreateInvitationRequest) (*model.Invitation, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Forbidden("only admins can invite users")
	}

	email := model.NormalizeEmail(req.Email)
	now := s.now()

	_, err := s.repo.GetPendingByEmail(ctx, actor.OrganizationID, email, now)
	switch {
	case err == nil:
		return nil, apperrors.Conflict("a pending invitation already exists for this email", nil)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.Internal(err)
	}

	_, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apperrors.Conflict("a user with this email already exists", nil)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.Internal(err)
	}

	token, err := s.tokens()
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	role := req.Role
	if role == "" {
		role = model.RoleUser
	}

	inv := &model.Invitation{
		ID:                uuid.New(),
		OrganizationID:    actor.OrganizationID,
		InvitedByUserID:   actor.ID,
		Email:             email,
		Token:             token,
		Role:              role,
		CustomPermissions: req.CustomPermissions,
		ExpiresAt:         now.Add(model.InvitationTTL),
		CreatedAt:         now,
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, repository.ToAppError(err, "invitation")
	}

	orgName := ""
	if org, err := s.orgs.Get(ctx, actor.OrganizationID); err == nil {
		orgName = org.Name
	}
	s.notifier.SendInvitation(ctx, inv.Email, actor.FullName(), orgName, inv.Token)
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "create", "invitation", inv.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"email": inv.Email, "role": inv.Role},
	})
	return inv, nil
}

func (s *Service) List(ctx context.Context, actor *model.User) ([]*model.Invitation, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Forbidden("only admins can view invitations")
	}
	invs, err := s.repo.ListPending(ctx, actor.OrganizationID, s.now())
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return invs, nil
}

func (s *Service) Cancel(ctx context.Context, actor *model.User, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return apperrors.Forbidden("only admins can cancel invitations")
	}
	if err := s.repo.Cancel(ctx, actor.OrganizationID, id, s.now()); err != nil {
		return repository.ToAppError(err, "invitation")
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "cancel", "invitation", id, nil)
	return nil
}

func (s *Service) Verify(ctx context.Context, token string) (*model.InvitationVerification, error) {
	inv, err := s.repo.GetByToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, invalidInvitation()
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !inv.Pending(s.now()) {
		return nil, invalidInvitation()
	}

	org, err := s.orgs.Get(ctx, inv.OrganizationID)
	if err != nil {
		return nil, repository.ToAppError(err, "organization")
	}
	return &model.InvitationVerification{
		Valid:            true,
		Email:            inv.Email,
		Role:             inv.Role,
		OrganizationName: org.Name,
		ExpiresAt:        inv.ExpiresAt,
	}, nil
}

// Accept consumes the invitation, creates the user and signs them in.
// An invitation can be accepted exactly once.
func (s *Service) Accept(ctx context.Context, req *model.AcceptInvitationRequest, client model.ClientInfo) (*model.TokenResponse, error) {
	hash, err := s.hasher.Hash(req.Password)
	if errors.Is(err, security.ErrPasswordTooShort) {
		return nil, apperrors.BadRequest(err.Error(), err)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := s.now()
	inv, user, err := s.repo.Accept(ctx, req.Token, now, func(inv *model.Invitation) (*model.User, error) {
		return &model.User{
			Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
			OrganizationID: inv.OrganizationID,
			Email:          inv.Email,
			PasswordHash:   hash,
			FirstName:      req.FirstName,
			LastName:       req.LastName,
			Role:           inv.Role,
			IsActive:       true,
		}, nil
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, invalidInvitation()
	case errors.Is(err, repository.ErrDuplicate):
		return nil, apperrors.Conflict("email already registered", err)
	case err != nil:
		return nil, apperrors.Internal(err)
	}

	resp, _, err := s.sessions.IssueSession(ctx, user, client)
	if err != nil {
		return nil, err
	}

	if err := s.events.Emit(ctx, model.EventInvitationAccepted, map[string]interface{}{
		"invitation_id":   inv.ID,
		"organization_id": inv.OrganizationID,
		"user_id":         user.ID,
	}); err != nil {
		s.logger.Error(err, "Failed to emit invitation event", "invitation_id", inv.ID.String())
	}
	s.notifier.SendWelcome(ctx, user.Email, user.FirstName)
	s.auditor.Log(ctx, user.ID, user.OrganizationID, "accept", "invitation", inv.ID, &audit.LogOptions{IPAddress: client.IPAddress})
	return resp, nil
}
