package organization

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/service/audit"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

const (
	cacheTTL     = 5 * time.Minute
	cacheCleanup = 10 * time.Minute
)

// Service reads organizations through an in-process cache
type Service struct {
	repo    repository.OrganizationRepository
	cache   *cache.Cache
	auditor *audit.Service
}

func NewService(repo repository.OrganizationRepository, auditor *audit.Service) *Service {
	return &Service{
		repo:    repo,
		cache:   cache.New(cacheTTL, cacheCleanup),
		auditor: auditor,
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	if cached, ok := s.cache.Get(id.String()); ok {
		org := *cached.(*model.Organization)
		return &org, nil
	}

	org, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, repository.ToAppError(err, "organization")
	}
	stored := *org
	s.cache.SetDefault(id.String(), &stored)
	return org, nil
}

func (s *Service) Update(ctx context.Context, actor *model.User, req *model.UpdateOrganizationRequest) (*model.Organization, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Forbidden("admin role required")
	}

	org, err := s.repo.Get(ctx, actor.OrganizationID)
	if err != nil {
		return nil, repository.ToAppError(err, "organization")
	}
	if req.Name != nil {
		org.Name = *req.Name
	}
	if req.IndustryType != nil {
		org.IndustryType = req.IndustryType
	}
	if req.Settings != nil {
		org.Settings = req.Settings
	}

	if err := s.repo.Update(ctx, org); err != nil {
		return nil, repository.ToAppError(err, "organization")
	}
	s.cache.Delete(org.ID.String())

	s.auditor.Log(ctx, actor.ID, org.ID, "update", "organization", org.ID, &audit.LogOptions{Changes: req})
	return org, nil
}
