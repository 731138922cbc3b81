package opportunity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/service/audit"
	"github.com/jwalitptl/crm-api/internal/service/event"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

type Service struct {
	repo      repository.OpportunityRepository
	pipelines repository.PipelineRepository
	customers repository.CustomerRepository
	users     repository.UserRepository
	events    event.Emitter
	auditor   *audit.Service
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(
	repo repository.OpportunityRepository,
	pipelines repository.PipelineRepository,
	customers repository.CustomerRepository,
	users repository.UserRepository,
	events event.Emitter,
	auditor *audit.Service,
	logger *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		repo:      repo,
		pipelines: pipelines,
		customers: customers,
		users:     users,
		events:    events,
		auditor:   auditor,
		logger:    logger,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) checkCustomer(ctx context.Context, orgID uuid.UUID, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.customers.Get(ctx, orgID, *id); err != nil {
		return repository.ToAppError(err, "customer")
	}
	return nil
}

func (s *Service) checkOwner(ctx context.Context, orgID, id uuid.UUID) error {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return repository.ToAppError(err, "user")
	}
	if u.OrganizationID != orgID {
		return apperrors.NotFound("user", repository.ErrNotFound)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, actor *model.User, req *model.CreateOpportunityRequest) (*model.Opportunity, error) {
	orgID := actor.OrganizationID

	p, err := s.pipelines.Get(ctx, orgID, req.PipelineID)
	if err != nil {
		return nil, repository.ToAppError(err, "pipeline")
	}
	if !p.IsActive {
		return nil, apperrors.NotFound("pipeline", repository.ErrNotFound)
	}
	stage, err := s.pipelines.GetStage(ctx, p.ID, req.StageID)
	if err != nil {
		return nil, repository.ToAppError(err, "stage")
	}
	if err := s.checkCustomer(ctx, orgID, req.CustomerID); err != nil {
		return nil, err
	}
	owner := actor.ID
	if req.UserID != nil && *req.UserID != actor.ID {
		if err := s.checkOwner(ctx, orgID, *req.UserID); err != nil {
			return nil, err
		}
		owner = *req.UserID
	}

	currency := req.Currency
	if currency == "" {
		currency = model.DefaultCurrency
	}

	now := s.now()
	opp := &model.Opportunity{
		Base:              model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		OrganizationID:    orgID,
		PipelineID:        p.ID,
		StageID:           stage.ID,
		CustomerID:        req.CustomerID,
		UserID:            owner,
		Title:             req.Title,
		Description:       req.Description,
		Value:             req.Value,
		Currency:          currency,
		Source:            req.Source,
		CustomFields:      req.CustomFields,
		Status:            stage.Status(),
		ExpectedCloseDate: req.ExpectedCloseDate,
		LastStageChange:   &now,
	}
	initial := &model.StageHistory{
		ID:            uuid.New(),
		OpportunityID: opp.ID,
		ToStageID:     stage.ID,
		UserID:        actor.ID,
		ChangedAt:     now,
	}

	if err := s.repo.Create(ctx, opp, initial); err != nil {
		return nil, repository.ToAppError(err, "opportunity")
	}
	s.auditor.Log(ctx, actor.ID, orgID, "create", "opportunity", opp.ID, nil)
	return opp, nil
}

func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Opportunity, error) {
	opp, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, repository.ToAppError(err, "opportunity")
	}
	return opp, nil
}

func (s *Service) List(ctx context.Context, filter model.OpportunityFilter) ([]*model.Opportunity, int, error) {
	filter.Pagination.Normalize()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.Internal(err)
	}
	return items, total, nil
}

// Update applies a partial update. Stage and status only move through ChangeStage.
func (s *Service) Update(ctx context.Context, actor *model.User, id uuid.UUID, req *model.UpdateOpportunityRequest) (*model.Opportunity, error) {
	opp, err := s.Get(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, err
	}

	if req.CustomerID != nil {
		if err := s.checkCustomer(ctx, actor.OrganizationID, req.CustomerID); err != nil {
			return nil, err
		}
		opp.CustomerID = req.CustomerID
	}
	if req.UserID != nil {
		if err := s.checkOwner(ctx, actor.OrganizationID, *req.UserID); err != nil {
			return nil, err
		}
		opp.UserID = *req.UserID
	}
	if req.Title != nil {
		opp.Title = *req.Title
	}
	if req.Description != nil {
		opp.Description = req.Description
	}
	if req.Value != nil {
		opp.Value = *req.Value
	}
	if req.Currency != nil {
		opp.Currency = *req.Currency
	}
	if req.Source != nil {
		opp.Source = req.Source
	}
	if req.CustomFields != nil {
		opp.CustomFields = req.CustomFields
	}
	if req.ExpectedCloseDate != nil {
		opp.ExpectedCloseDate = req.ExpectedCloseDate
	}
	opp.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, opp); err != nil {
		return nil, repository.ToAppError(err, "opportunity")
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "update", "opportunity", id, &audit.LogOptions{Changes: req})
	return s.Get(ctx, actor.OrganizationID, id)
}

func (s *Service) Delete(ctx context.Context, actor *model.User, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, actor.OrganizationID, id); err != nil {
		return repository.ToAppError(err, "opportunity")
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "delete", "opportunity", id, nil)
	return nil
}

// ChangeStage moves the opportunity to stageID within its pipeline. Moving to
// the current stage is a no-op that writes no history. Events are emitted
// only after the transition is committed.
func (s *Service) ChangeStage(ctx context.Context, actor *model.User, id, stageID uuid.UUID, notes *string) (*model.Opportunity, error) {
	current, err := s.Get(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, err
	}
	stage, err := s.pipelines.GetStage(ctx, current.PipelineID, stageID)
	if err != nil {
		return nil, repository.ToAppError(err, "stage")
	}

	var from uuid.UUID
	opp, entry, err := s.repo.ChangeStage(ctx, actor.OrganizationID, id, func(o *model.Opportunity) (*model.StageHistory, error) {
		from = o.StageID
		return o.ApplyStage(stage, actor.ID, notes, s.now()), nil
	})
	if errors.Is(err, repository.ErrStaleWrite) {
		s.metrics.StageConflicts.Inc()
	}
	if err != nil {
		return nil, repository.ToAppError(err, "opportunity")
	}
	if entry == nil {
		return opp, nil
	}

	s.metrics.StageTransitions.WithLabelValues(opp.Status).Inc()
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "change_stage", "opportunity", id, &audit.LogOptions{
		Metadata: map[string]interface{}{"from_stage_id": from.String(), "to_stage_id": stageID.String()},
	})
	s.emitStageEvents(ctx, opp, entry, actor.ID)
	return opp, nil
}

func (s *Service) emitStageEvents(ctx context.Context, opp *model.Opportunity, entry *model.StageHistory, actorID uuid.UUID) {
	payload := model.StageChangedPayload{
		OrganizationID: opp.OrganizationID,
		OpportunityID:  opp.ID,
		FromStageID:    entry.FromStageID,
		ToStageID:      entry.ToStageID,
		Status:         opp.Status,
		Value:          opp.Value,
		ActorID:        actorID,
		ChangedAt:      entry.ChangedAt,
	}

	types := []string{model.EventOpportunityStageChanged}
	switch opp.Status {
	case model.OpportunityStatusWon:
		types = append(types, model.EventOpportunityWon)
	case model.OpportunityStatusLost:
		types = append(types, model.EventOpportunityLost)
	}
	for _, t := range types {
		if err := s.events.Emit(ctx, t, payload); err != nil {
			s.logger.Error(err, "Failed to emit stage event", "event_type", t, "opportunity_id", opp.ID.String())
		}
	}
}

func (s *Service) History(ctx context.Context, orgID, id uuid.UUID) ([]*model.StageHistory, error) {
	if _, err := s.Get(ctx, orgID, id); err != nil {
		return nil, err
	}
	history, err := s.repo.History(ctx, id)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return history, nil
}
