package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

type Service struct {
	repo repository.DashboardRepository
	now  func() time.Time
}

func NewService(repo repository.DashboardRepository) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Overview summarizes the organization for the period ending now.
// An empty period means month.
func (s *Service) Overview(ctx context.Context, orgID uuid.UUID, period string) (*model.DashboardOverview, error) {
	since, ok := model.PeriodStart(period, s.now())
	if !ok {
		return nil, apperrors.BadRequest("period must be one of week, month, quarter, year", nil)
	}
	if period == "" {
		period = model.PeriodMonth
	}

	out, err := s.repo.Overview(ctx, orgID, since)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	out.Period = period
	out.Since = since
	if out.CustomersBySegment == nil {
		out.CustomersBySegment = []model.SegmentCount{}
	}
	if out.OpportunitiesByStage == nil {
		out.OpportunitiesByStage = []model.StageCount{}
	}
	return out, nil
}
