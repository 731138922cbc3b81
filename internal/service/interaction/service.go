package interaction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/service/audit"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

const (
	DefaultFollowupDays = 7
	MaxFollowupDays     = 365
)

type Service struct {
	repo    repository.InteractionRepository
	auditor *audit.Service
	now     func() time.Time
}

func NewService(repo repository.InteractionRepository, auditor *audit.Service) *Service {
	return &Service{
		repo:    repo,
		auditor: auditor,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Create(ctx context.Context, actor *model.User, req *model.CreateInteractionRequest) (*model.Interaction, error) {
	now := s.now()
	at := now
	if req.DateTime != nil {
		at = req.DateTime.UTC()
	}

	interaction := &model.Interaction{
		Base:             model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		CustomerID:       req.CustomerID,
		UserID:           actor.ID,
		Type:             req.Type,
		DateTime:         at,
		DurationMinutes:  req.DurationMinutes,
		Notes:            req.Notes,
		Outcome:          req.Outcome,
		RequiresFollowup: req.RequiresFollowup,
		FollowupDate:     req.FollowupDate,
		FollowupType:     req.FollowupType,
		FollowupNotes:    req.FollowupNotes,
	}

	if err := s.repo.Create(ctx, actor.OrganizationID, interaction); err != nil {
		return nil, repository.ToAppError(err, "customer")
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "create", "interaction", interaction.ID, nil)
	return interaction, nil
}

func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Interaction, error) {
	interaction, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, repository.ToAppError(err, "interaction")
	}
	return interaction, nil
}

func (s *Service) List(ctx context.Context, filter model.InteractionFilter) ([]*model.Interaction, int, error) {
	filter.Pagination.Normalize()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.Internal(err)
	}
	return items, total, nil
}

func (s *Service) ListForCustomer(ctx context.Context, orgID, customerID uuid.UUID, page model.Pagination) ([]*model.Interaction, int, error) {
	return s.List(ctx, model.InteractionFilter{
		OrganizationID: orgID,
		CustomerID:     &customerID,
		Pagination:     page,
	})
}

// Update applies a partial update. Completing a follow-up without a
// completion date stamps the current time.
func (s *Service) Update(ctx context.Context, actor *model.User, id uuid.UUID, req *model.UpdateInteractionRequest) (*model.Interaction, error) {
	interaction, err := s.repo.Get(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, repository.ToAppError(err, "interaction")
	}
	now := s.now()

	if req.Type != nil {
		interaction.Type = *req.Type
	}
	if req.DateTime != nil {
		interaction.DateTime = req.DateTime.UTC()
	}
	if req.DurationMinutes != nil {
		interaction.DurationMinutes = req.DurationMinutes
	}
	if req.Notes != nil {
		interaction.Notes = req.Notes
	}
	if req.Outcome != nil {
		interaction.Outcome = req.Outcome
	}
	if req.RequiresFollowup != nil {
		interaction.RequiresFollowup = *req.RequiresFollowup
	}
	if req.FollowupDate != nil {
		interaction.FollowupDate = req.FollowupDate
	}
	if req.FollowupType != nil {
		interaction.FollowupType = req.FollowupType
	}
	if req.FollowupNotes != nil {
		interaction.FollowupNotes = req.FollowupNotes
	}
	if req.FollowupCompleted != nil {
		interaction.FollowupCompleted = *req.FollowupCompleted
		if interaction.FollowupCompleted && interaction.FollowupCompletedDate == nil {
			interaction.FollowupCompletedDate = &now
		}
	}
	interaction.UpdatedAt = now

	if err := s.repo.Update(ctx, interaction); err != nil {
		return nil, repository.ToAppError(err, "interaction")
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "update", "interaction", id, &audit.LogOptions{Changes: req})
	return interaction, nil
}

func (s *Service) Delete(ctx context.Context, actor *model.User, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, actor.OrganizationID, id); err != nil {
		return repository.ToAppError(err, "interaction")
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "delete", "interaction", id, nil)
	return nil
}

// PendingFollowups lists open follow-ups due within the next days days.
func (s *Service) PendingFollowups(ctx context.Context, orgID uuid.UUID, days int) ([]*model.Interaction, error) {
	if days == 0 {
		days = DefaultFollowupDays
	}
	if days < 0 || days > MaxFollowupDays {
		return nil, apperrors.BadRequest("days must be between 1 and 365", nil)
	}

	now := s.now()
	items, err := s.repo.PendingFollowups(ctx, orgID, now, now.AddDate(0, 0, days))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return items, nil
}

func (s *Service) CompleteFollowup(ctx context.Context, actor *model.User, id uuid.UUID, notes string) (*model.Interaction, error) {
	interaction, err := s.repo.Get(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, repository.ToAppError(err, "interaction")
	}
	if !interaction.RequiresFollowup {
		return nil, apperrors.BadRequest("interaction does not require a follow-up", nil)
	}

	interaction.CompleteFollowup(notes, s.now())
	if err := s.repo.Update(ctx, interaction); err != nil {
		return nil, repository.ToAppError(err, "interaction")
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "complete_followup", "interaction", id, nil)
	return interaction, nil
}
