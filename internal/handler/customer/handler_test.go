package customer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/model"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Create(ctx context.Context, actor *model.User, req *model.CreateCustomerRequest) (*model.Customer, error) {
	args := m.Called(ctx, actor, req)
	c, _ := args.Get(0).(*model.Customer)
	return c, args.Error(1)
}

func (m *mockService) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Customer, error) {
	args := m.Called(ctx, orgID, id)
	c, _ := args.Get(0).(*model.Customer)
	return c, args.Error(1)
}

func (m *mockService) List(ctx context.Context, filter model.CustomerFilter) ([]*model.Customer, int, error) {
	args := m.Called(ctx, filter)
	list, _ := args.Get(0).([]*model.Customer)
	return list, args.Int(1), args.Error(2)
}

func (m *mockService) Update(ctx context.Context, actor *model.User, id uuid.UUID, req *model.UpdateCustomerRequest) (*model.Customer, error) {
	args := m.Called(ctx, actor, id, req)
	c, _ := args.Get(0).(*model.Customer)
	return c, args.Error(1)
}

func (m *mockService) Delete(ctx context.Context, actor *model.User, id uuid.UUID) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *mockService) RecordPurchase(ctx context.Context, actor *model.User, id uuid.UUID, req *model.RecordPurchaseRequest) (*model.Customer, error) {
	args := m.Called(ctx, actor, id, req)
	c, _ := args.Get(0).(*model.Customer)
	return c, args.Error(1)
}

func newEngine(svc *mockService, user *model.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("")
	g.Use(func(c *gin.Context) {
		c.Set(handler.ContextUser, user)
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(g)
	return r
}

func post(r *gin.Engine, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func requestIDIs(want string) interface{} {
	return mock.MatchedBy(func(req *model.RecordPurchaseRequest) bool {
		return req.RequestID != nil && *req.RequestID == want
	})
}

func TestRecordPurchaseIdempotencyKey(t *testing.T) {
	user := &model.User{OrganizationID: uuid.New()}
	id := uuid.New()
	path := "/customers/" + id.String() + "/purchases"

	t.Run("header used when body has none", func(t *testing.T) {
		svc := &mockService{}
		svc.On("RecordPurchase", mock.Anything, user, id, requestIDIs("key-1")).Return(&model.Customer{PurchaseCount: 1}, nil)

		w := post(newEngine(svc, user), path, `{"amount": 10}`, map[string]string{HeaderIdempotencyKey: "key-1"})
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("body request id wins", func(t *testing.T) {
		svc := &mockService{}
		svc.On("RecordPurchase", mock.Anything, user, id, requestIDIs("body-1")).Return(&model.Customer{}, nil)

		w := post(newEngine(svc, user), path, `{"amount": 10, "request_id": "body-1"}`, map[string]string{HeaderIdempotencyKey: "key-1"})
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("oversized header rejected", func(t *testing.T) {
		svc := &mockService{}
		w := post(newEngine(svc, user), path, `{"amount": 10}`, map[string]string{HeaderIdempotencyKey: strings.Repeat("k", 101)})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "RecordPurchase", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestGetMapsNotFound(t *testing.T) {
	user := &model.User{OrganizationID: uuid.New()}
	id := uuid.New()
	svc := &mockService{}
	svc.On("Get", mock.Anything, user.OrganizationID, id).Return(nil, apperrors.NotFound("customer", nil))

	w := httptest.NewRecorder()
	newEngine(svc, user).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/customers/"+id.String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not_found")
}
