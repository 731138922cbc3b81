package customer

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

type CustomerService interface {
	Create(ctx context.Context, actor *model.User, req *model.CreateCustomerRequest) (*model.Customer, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*model.Customer, error)
	List(ctx context.Context, filter model.CustomerFilter) ([]*model.Customer, int, error)
	Update(ctx context.Context, actor *model.User, id uuid.UUID, req *model.UpdateCustomerRequest) (*model.Customer, error)
	Delete(ctx context.Context, actor *model.User, id uuid.UUID) error
	RecordPurchase(ctx context.Context, actor *model.User, id uuid.UUID, req *model.RecordPurchaseRequest) (*model.Customer, error)
}

type Service struct {
	repo    repository.CustomerRepository
	events  event.Emitter
	auditor *audit.Service
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo repository.CustomerRepository, events event.Emitter, auditor *audit.Service, logger *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		events:  events,
		auditor: auditor,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Create(ctx context.Context, actor *model.User, req *model.CreateCustomerRequest) (*model.Customer, error) {
	now := s.now()
	customer := &model.Customer{
		Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		OrganizationID: actor.OrganizationID,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Phone:          req.Phone,
		Address:        req.Address,
		Segment:        req.Segment,
		Notes:          req.Notes,
		CustomFields:   req.CustomFields,
		Status:         model.CustomerStatusActive,
	}

	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, repository.ToAppError(err, "customer")
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "create", "customer", customer.ID, nil)
	return customer, nil
}

func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Customer, error) {
	customer, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, repository.ToAppError(err, "customer")
	}
	return customer, nil
}

// List returns active customers unless the filter names another status.
func (s *Service) List(ctx context.Context, filter model.CustomerFilter) ([]*model.Customer, int, error) {
	if filter.Status == "" {
		filter.Status = model.CustomerStatusActive
	}
	filter.Pagination.Normalize()

	customers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.Internal(err)
	}
	return customers, total, nil
}

func (s *Service) Update(ctx context.Context, actor *model.User, id uuid.UUID, req *model.UpdateCustomerRequest) (*model.Customer, error) {
	customer, err := s.repo.Get(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, repository.ToAppError(err, "customer")
	}

	if req.FirstName != nil {
		customer.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		customer.LastName = *req.LastName
	}
	if req.Email != nil {
		customer.Email = req.Email
	}
	if req.Phone != nil {
		customer.Phone = req.Phone
	}
	if req.Address != nil {
		customer.Address = req.Address
	}
	if req.Segment != nil {
		customer.Segment = req.Segment
		now := s.now()
		customer.SegmentUpdatedAt = &now
	}
	if req.Notes != nil {
		customer.Notes = req.Notes
	}
	if req.CustomFields != nil {
		customer.CustomFields = req.CustomFields
	}
	if req.Status != nil {
		customer.Status = *req.Status
	}
	customer.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, customer); err != nil {
		return nil, repository.ToAppError(err, "customer")
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "update", "customer", customer.ID, &audit.LogOptions{Changes: req})
	return customer, nil
}

// Delete flips the customer to inactive. Rows are kept for history.
func (s *Service) Delete(ctx context.Context, actor *model.User, id uuid.UUID) error {
	customer, err := s.repo.Get(ctx, actor.OrganizationID, id)
	if err != nil {
		return repository.ToAppError(err, "customer")
	}
	customer.Status = model.CustomerStatusInactive
	customer.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, customer); err != nil {
		return repository.ToAppError(err, "customer")
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "delete", "customer", id, nil)
	return nil
}

// RecordPurchase folds a purchase into the customer's segmentation metrics.
// A request id that was already recorded for the customer leaves the metrics
// unchanged and returns the current customer.
func (s *Service) RecordPurchase(ctx context.Context, actor *model.User, id uuid.UUID, req *model.RecordPurchaseRequest) (*model.Customer, error) {
	if req.Amount <= 0 {
		return nil, apperrors.BadRequest(model.ErrNonPositiveAmount.Error(), model.ErrNonPositiveAmount)
	}

	now := s.now()
	date := model.NewDate(now)
	if req.PurchaseDate != nil {
		date = *req.PurchaseDate
	}
	if req.RequestID != nil && *req.RequestID == "" {
		req.RequestID = nil
	}

	purchase := &model.Purchase{
		ID:           uuid.New(),
		CustomerID:   id,
		RequestID:    req.RequestID,
		PurchaseDate: date,
		Amount:       req.Amount,
		ItemsCount:   req.ItemsCount,
		Notes:        req.Notes,
		CreatedAt:    now,
	}

	customer, applied, err := s.repo.RecordPurchase(ctx, actor.OrganizationID, id, purchase, func(c *model.Customer) error {
		return c.RecordPurchase(date, req.Amount, now)
	})
	if errors.Is(err, model.ErrNonPositiveAmount) {
		return nil, apperrors.BadRequest(err.Error(), err)
	}
	if err != nil {
		return nil, repository.ToAppError(err, "customer")
	}

	if !applied {
		s.metrics.PurchaseDuplicates.Inc()
		s.logger.Debug("Purchase request already recorded", "customer_id", id.String(), "request_id", *req.RequestID)
		return customer, nil
	}
	s.metrics.PurchasesRecorded.Inc()

	if err := s.events.Emit(ctx, model.EventCustomerPurchase, map[string]interface{}{
		"organization_id": actor.OrganizationID,
		"customer_id":     id,
		"purchase_id":     purchase.ID,
		"amount":          purchase.Amount,
		"purchase_date":   purchase.PurchaseDate.String(),
	}); err != nil {
		s.logger.Error(err, "Failed to emit purchase event", "customer_id", id.String())
	}
	s.auditor.Log(ctx, actor.ID, actor.OrganizationID, "record_purchase", "customer", id, &audit.LogOptions{
		Metadata: map[string]interface{}{"purchase_id": purchase.ID.String(), "amount": purchase.Amount},
	})
	return customer, nil
}
