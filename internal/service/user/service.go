package user

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/service/audit"
	"github.com/jwalitptl/crm-api/internal/service/session"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

type Service struct {
	repo     repository.UserRepository
	sessions *session.Service
	auditor  *audit.Service
	now      func() time.Time
}

func NewService(repo repository.UserRepository, sessions *session.Service, auditor *audit.Service) *Service {
	return &Service{
		repo:     repo,
		sessions: sessions,
		auditor:  auditor,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func requireAdmin(actor *model.User) error {
	if !actor.IsAdmin() {
		return apperrors.Forbidden("admin role required")
	}
	return nil
}

func (s *Service) Me(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, repository.ToAppError(err, "user")
	}
	return user, nil
}

func (s *Service) UpdateMe(ctx context.Context, id uuid.UUID, req *model.UpdateProfileRequest) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, repository.ToAppError(err, "user")
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	user.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, repository.ToAppError(err, "user")
	}
	s.auditor.Log(ctx, user.ID, user.OrganizationID, "update_profile", "user", user.ID, &audit.LogOptions{Changes: req})
	return user, nil
}

func (s *Service) List(ctx context.Context, actor *model.User, page model.Pagination) ([]*model.User, int, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, 0, err
	}
	users, total, err := s.repo.ListByOrganization(ctx, actor.OrganizationID, page)
	if err != nil {
		return nil, 0, apperrors.Internal(err)
	}
	return users, total, nil
}

// SetActive enables or disables a member of the actor's organization.
// Disabling also ends every session of that user.
func (s *Service) SetActive(ctx context.Context, actor *model.User, id uuid.UUID, active bool) (*model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if id == actor.ID && !active {
		return nil, apperrors.BadRequest("you cannot deactivate your own account", nil)
	}

	if err := s.repo.SetActive(ctx, actor.OrganizationID, id, active); err != nil {
		return nil, repository.ToAppError(err, "user")
	}
	if !active {
		if _, err := s.sessions.RevokeAll(ctx, id, ""); err != nil {
			return nil, err
		}
	}

	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, repository.ToAppError(err, "user")
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "set_active", "user", id, &audit.LogOptions{
		Metadata: map[string]interface{}{"is_active": active},
	})
	return user, nil
}
