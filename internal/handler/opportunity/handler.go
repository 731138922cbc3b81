package opportunity

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/opportunity"
)

type Handler struct {
	svc *opportunity.Service
}

func NewHandler(svc *opportunity.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	opps := r.Group("/opportunities")
	{
		opps.POST("", h.Create)
		opps.GET("", h.List)
		opps.GET("/:id", h.Get)
		opps.PUT("/:id", h.Update)
		opps.DELETE("/:id", h.Delete)
		opps.PUT("/:id/stage/:stage_id", h.ChangeStage)
		opps.GET("/:id/history", h.History)
	}
}

func (h *Handler) Create(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	var req model.CreateOpportunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	opp, err := h.svc.Create(c.Request.Context(), current, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(opp))
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

	filter := model.OpportunityFilter{
		OrganizationID: current.OrganizationID,
		Status:         c.Query("status"),
		Search:         c.Query("search"),
		Pagination:     page,
	}
	params := []struct {
		name string
		dst  **uuid.UUID
	}{
		{"pipeline_id", &filter.PipelineID},
		{"stage_id", &filter.StageID},
		{"customer_id", &filter.CustomerID},
		{"user_id", &filter.UserID},
	}
	for _, p := range params {
		id, ok := handler.QueryUUID(c, p.name)
		if !ok {
			return
		}
		*p.dst = id
	}

	opps, total, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	handler.RespondList(c, opps, page, total)
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

	opp, err := h.svc.Get(c.Request.Context(), current.OrganizationID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(opp))
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

	var req model.UpdateOpportunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	opp, err := h.svc.Update(c.Request.Context(), current, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(opp))
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

	c.JSON(http.StatusOK, handler.NewMessageResponse("opportunity deleted"))
}

func (h *Handler) ChangeStage(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	stageID, ok := handler.ParamUUID(c, "stage_id")
	if !ok {
		return
	}

	var req model.ChangeStageRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			handler.RespondBindError(c, err)
			return
		}
	}

	opp, err := h.svc.ChangeStage(c.Request.Context(), current, id, stageID, req.Notes)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(opp))
}

func (h *Handler) History(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	history, err := h.svc.History(c.Request.Context(), current.OrganizationID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(history))
}
