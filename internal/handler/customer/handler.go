package customer

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/customer"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

// HeaderIdempotencyKey deduplicates purchase submissions when the body has no request_id
const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotencyKeyLength = 100

type Handler struct {
	svc customer.CustomerService
}

func NewHandler(svc customer.CustomerService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	customers := r.Group("/customers")
	{
		customers.POST("", h.Create)
		customers.GET("", h.List)
		customers.GET("/:id", h.Get)
		customers.PUT("/:id", h.Update)
		customers.DELETE("/:id", h.Delete)
		customers.POST("/:id/purchases", h.RecordPurchase)
	}
}

func (h *Handler) Create(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	var req model.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	cust, err := h.svc.Create(c.Request.Context(), current, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(cust))
}

func (h *Handler) List(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	page, ok := handler.Page(c)
	if !ok {
		return
	}

	filter := model.CustomerFilter{
		OrganizationID: current.OrganizationID,
		Search:         c.Query("search"),
		Status:         c.Query("status"),
		Segment:        c.Query("segment"),
		Pagination:     page,
	}

	customers, total, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	handler.RespondList(c, customers, page, total)
}

func (h *Handler) Get(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	cust, err := h.svc.Get(c.Request.Context(), current.OrganizationID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(cust))
}

func (h *Handler) Update(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	cust, err := h.svc.Update(c.Request.Context(), current, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(cust))
}

func (h *Handler) Delete(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), current, id); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewMessageResponse("customer deactivated"))
}

func (h *Handler) RecordPurchase(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	var req model.RecordPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	if req.RequestID == nil {
		if key := c.GetHeader(HeaderIdempotencyKey); key != "" {
			if len(key) > maxIdempotencyKeyLength {
				handler.RespondError(c, apperrors.BadRequest("Idempotency-Key is too long", nil))
				return
			}
			req.RequestID = &key
		}
	}

	cust, err := h.svc.RecordPurchase(c.Request.Context(), current, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(cust))
}
