package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/service/audit"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

type Service struct {
	repo    repository.PipelineRepository
	auditor *audit.Service
	now     func() time.Time
}

func NewService(repo repository.PipelineRepository, auditor *audit.Service) *Service {
	return &Service{
		repo:    repo,
		auditor: auditor,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func colorOrDefault(c string) string {
	if c == "" {
		return model.DefaultStageColor
	}
	return c
}

func terminalConflict(name string) error {
	return apperrors.BadRequest(fmt.Sprintf("stage %q cannot be both won and lost", name), nil)
}

func (s *Service) newStage(pipelineID uuid.UUID, req model.StageRequest, now time.Time) model.PipelineStage {
	duration := model.DefaultExpectedDurationDays
	if req.ExpectedDurationDays != nil {
		duration = *req.ExpectedDurationDays
	}
	return model.PipelineStage{
		Base:                 model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		PipelineID:           pipelineID,
		Name:                 req.Name,
		Description:          req.Description,
		Color:                colorOrDefault(req.Color),
		Order:                req.Order,
		Probability:          req.Probability,
		ExpectedDurationDays: duration,
		IsWon:                req.IsWon,
		IsLost:               req.IsLost,
	}
}

func validateStages(stages []model.StageRequest) error {
	seen := make(map[int]string, len(stages))
	for _, st := range stages {
		if prev, ok := seen[st.Order]; ok {
			return apperrors.BadRequest(fmt.Sprintf("stages %q and %q share order %d", prev, st.Name, st.Order), nil)
		}
		seen[st.Order] = st.Name
		if st.IsWon && st.IsLost {
			return terminalConflict(st.Name)
		}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, actor *model.User, req *model.CreatePipelineRequest) (*model.Pipeline, error) {
	if err := validateStages(req.Stages); err != nil {
		return nil, err
	}

	now := s.now()
	p := &model.Pipeline{
		Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		OrganizationID: actor.OrganizationID,
		Name:           req.Name,
		Description:    req.Description,
		Color:          colorOrDefault(req.Color),
		IsActive:       true,
		IsDefault:      req.IsDefault,
	}
	for _, st := range req.Stages {
		p.Stages = append(p.Stages, s.newStage(p.ID, st, now))
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, repository.ToAppError(err, "pipeline")
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "create", "pipeline", p.ID, nil)
	return s.Get(ctx, actor.OrganizationID, p.ID)
}

func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Pipeline, error) {
	p, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, repository.ToAppError(err, "pipeline")
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, orgID uuid.UUID, includeInactive bool) ([]*model.Pipeline, error) {
	pipelines, err := s.repo.List(ctx, orgID, includeInactive)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return pipelines, nil
}

func (s *Service) Update(ctx context.Context, actor *model.User, id uuid.UUID, req *model.UpdatePipelineRequest) (*model.Pipeline, error) {
	p, err := s.Get(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = req.Description
	}
	if req.Color != nil {
		p.Color = colorOrDefault(*req.Color)
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if req.IsDefault != nil {
		p.IsDefault = *req.IsDefault
	}
	if p.IsDefault && !p.IsActive {
		return nil, apperrors.Conflict("the default pipeline must stay active", nil)
	}
	p.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, repository.ToAppError(err, "pipeline")
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "update", "pipeline", id, &audit.LogOptions{Changes: req})
	return s.Get(ctx, actor.OrganizationID, id)
}

// Delete deactivates the pipeline. The default pipeline cannot be deleted.
func (s *Service) Delete(ctx context.Context, actor *model.User, id uuid.UUID) error {
	p, err := s.Get(ctx, actor.OrganizationID, id)
	if err != nil {
		return err
	}
	if p.IsDefault {
		return apperrors.Conflict("the default pipeline cannot be deleted", nil)
	}

	p.IsActive = false
	p.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, p); err != nil {
		return repository.ToAppError(err, "pipeline")
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "delete", "pipeline", id, nil)
	return nil
}

func (s *Service) SetDefault(ctx context.Context, actor *model.User, id uuid.UUID) (*model.Pipeline, error) {
	p, err := s.Get(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, apperrors.Conflict("an inactive pipeline cannot be the default", nil)
	}

	if err := s.repo.SetDefault(ctx, actor.OrganizationID, id); err != nil {
		return nil, repository.ToAppError(err, "pipeline")
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "set_default", "pipeline", id, nil)
	return s.Get(ctx, actor.OrganizationID, id)
}

func (s *Service) AddStage(ctx context.Context, actor *model.User, pipelineID uuid.UUID, req *model.StageRequest) (*model.PipelineStage, error) {
	if _, err := s.Get(ctx, actor.OrganizationID, pipelineID); err != nil {
		return nil, err
	}
	if req.IsWon && req.IsLost {
		return nil, terminalConflict(req.Name)
	}

	stage := s.newStage(pipelineID, *req, s.now())
	if err := s.repo.CreateStage(ctx, &stage); err != nil {
		return nil, repository.ToAppError(err, "stage order")
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "create", "pipeline_stage", stage.ID, nil)
	return &stage, nil
}

func (s *Service) UpdateStage(ctx context.Context, actor *model.User, pipelineID, stageID uuid.UUID, req *model.UpdateStageRequest) (*model.PipelineStage, error) {
	if _, err := s.Get(ctx, actor.OrganizationID, pipelineID); err != nil {
		return nil, err
	}
	stage, err := s.repo.GetStage(ctx, pipelineID, stageID)
	if err != nil {
		return nil, repository.ToAppError(err, "stage")
	}

	if req.Name != nil {
		stage.Name = *req.Name
	}
	if req.Description != nil {
		stage.Description = req.Description
	}
	if req.Color != nil {
		stage.Color = colorOrDefault(*req.Color)
	}
	if req.Probability != nil {
		stage.Probability = *req.Probability
	}
	if req.ExpectedDurationDays != nil {
		stage.ExpectedDurationDays = *req.ExpectedDurationDays
	}
	if req.IsWon != nil {
		stage.IsWon = *req.IsWon
	}
	if req.IsLost != nil {
		stage.IsLost = *req.IsLost
	}
	if stage.IsWon && stage.IsLost {
		return nil, terminalConflict(stage.Name)
	}
	stage.UpdatedAt = s.now()

	if err := s.repo.UpdateStage(ctx, stage); err != nil {
		return nil, repository.ToAppError(err, "stage")
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "update", "pipeline_stage", stageID, &audit.LogOptions{Changes: req})
	return stage, nil
}

// DeleteStage removes a stage that no opportunity references.
func (s *Service) DeleteStage(ctx context.Context, actor *model.User, pipelineID, stageID uuid.UUID) error {
	if _, err := s.Get(ctx, actor.OrganizationID, pipelineID); err != nil {
		return err
	}
	if err := s.repo.DeleteStage(ctx, pipelineID, stageID); err != nil {
		return repository.ToAppError(err, "stage")
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "delete", "pipeline_stage", stageID, nil)
	return nil
}

// ReorderStages assigns order = index to every stage of the pipeline. The
// ids must be exactly the pipeline's stage ids.
func (s *Service) ReorderStages(ctx context.Context, actor *model.User, pipelineID uuid.UUID, stageIDs []uuid.UUID) ([]model.PipelineStage, error) {
	p, err := s.Get(ctx, actor.OrganizationID, pipelineID)
	if err != nil {
		return nil, err
	}

	if len(stageIDs) != len(p.Stages) {
		return nil, apperrors.BadRequest("stage ids must list every stage of the pipeline exactly once", nil)
	}
	seen := make(map[uuid.UUID]struct{}, len(stageIDs))
	for _, id := range stageIDs {
		if _, dup := seen[id]; dup || !p.HasStage(id) {
			return nil, apperrors.BadRequest("stage ids must list every stage of the pipeline exactly once", nil)
		}
		seen[id] = struct{}{}
	}

	if err := s.repo.ReorderStages(ctx, pipelineID, stageIDs); err != nil {
		return nil, repository.ToAppError(err, "stage")
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "reorder_stages", "pipeline", pipelineID, nil)

	p, err = s.Get(ctx, actor.OrganizationID, pipelineID)
	if err != nil {
		return nil, err
	}
	return p.Stages, nil
}
