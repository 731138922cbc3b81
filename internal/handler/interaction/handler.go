package interaction

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/interaction"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

type Handler struct {
	svc *interaction.Service
}

func NewHandler(svc *interaction.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	interactions := r.Group("/interactions")
	{
		interactions.POST("", h.Create)
		interactions.GET("", h.List)
		interactions.GET("/followup/pending", h.PendingFollowups)
		interactions.GET("/customer/:customer_id", h.ListForCustomer)
		interactions.GET("/:id", h.Get)
		interactions.PUT("/:id", h.Update)
		interactions.DELETE("/:id", h.Delete)
		interactions.PUT("/:id/complete-followup", h.CompleteFollowup)
	}
}

// parseTime accepts RFC3339 or a bare YYYY-MM-DD date
func parseTime(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, true
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		handler.RespondError(c, apperrors.BadRequest("invalid "+name, err))
		return nil, false
	}
	return &d.Time, true
}

func (h *Handler) Create(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	var req model.CreateInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	i, err := h.svc.Create(c.Request.Context(), current, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(i))
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
	customerID, ok := handler.QueryUUID(c, "customer_id")
	if !ok {
		return
	}
	from, ok := parseTime(c, "from")
	if !ok {
		return
	}
	to, ok := parseTime(c, "to")
	if !ok {
		return
	}

	filter := model.InteractionFilter{
		OrganizationID: current.OrganizationID,
		CustomerID:     customerID,
		Type:           c.Query("type"),
		From:           from,
		To:             to,
		Pagination:     page,
	}
	if raw := c.Query("requires_followup"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			handler.RespondError(c, apperrors.BadRequest("invalid requires_followup", err))
			return
		}
		filter.RequiresFollowup = &v
	}

	items, total, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	handler.RespondList(c, items, page, total)
}

func (h *Handler) ListForCustomer(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	customerID, ok := handler.ParamUUID(c, "customer_id")
	if !ok {
		return
	}
	page, ok := handler.Page(c)
	if !ok {
		return
	}

	items, total, err := h.svc.ListForCustomer(c.Request.Context(), current.OrganizationID, customerID, page)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	handler.RespondList(c, items, page, total)
}

func (h *Handler) PendingFollowups(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	days := 0
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			handler.RespondError(c, apperrors.BadRequest("invalid days", err))
			return
		}
		days = n
	}

	items, err := h.svc.PendingFollowups(c.Request.Context(), current.OrganizationID, days)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(items))
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

	i, err := h.svc.Get(c.Request.Context(), current.OrganizationID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(i))
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

	var req model.UpdateInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	i, err := h.svc.Update(c.Request.Context(), current, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(i))
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

	c.JSON(http.StatusOK, handler.NewMessageResponse("interaction deleted"))
}

func (h *Handler) CompleteFollowup(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	// notes are optional; an empty body is accepted
	var req model.CompleteFollowupRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			handler.RespondBindError(c, err)
			return
		}
	}

	i, err := h.svc.CompleteFollowup(c.Request.Context(), current, id, req.Notes)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(i))
}
