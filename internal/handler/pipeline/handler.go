package pipeline

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/pipeline"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

type Handler struct {
	svc *pipeline.Service
}

func NewHandler(svc *pipeline.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	pipelines := r.Group("/pipelines")
	{
		pipelines.POST("", h.Create)
		pipelines.GET("", h.List)
		pipelines.GET("/:id", h.Get)
		pipelines.PUT("/:id", h.Update)
		pipelines.DELETE("/:id", h.Delete)
		pipelines.POST("/:id/set-default", h.SetDefault)
		pipelines.POST("/:id/stages", h.AddStage)
		pipelines.PUT("/:id/stages/:stage_id", h.UpdateStage)
		pipelines.DELETE("/:id/stages/:stage_id", h.DeleteStage)
		pipelines.PUT("/:id/reorder-stages", h.ReorderStages)
	}
}

func (h *Handler) Create(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	var req model.CreatePipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	p, err := h.svc.Create(c.Request.Context(), current, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(p))
}

func (h *Handler) List(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	includeInactive := false
	if raw := c.Query("include_inactive"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			handler.RespondError(c, apperrors.BadRequest("invalid include_inactive", err))
			return
		}
		includeInactive = v
	}

	pipelines, err := h.svc.List(c.Request.Context(), current.OrganizationID, includeInactive)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(pipelines))
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

	p, err := h.svc.Get(c.Request.Context(), current.OrganizationID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
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

	var req model.UpdatePipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	p, err := h.svc.Update(c.Request.Context(), current, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
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

	c.JSON(http.StatusOK, handler.NewMessageResponse("pipeline deactivated"))
}

func (h *Handler) SetDefault(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.svc.SetDefault(c.Request.Context(), current, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

func (h *Handler) AddStage(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	var req model.StageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	stage, err := h.svc.AddStage(c.Request.Context(), current, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(stage))
}

func (h *Handler) UpdateStage(c *gin.Context) {
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

	var req model.UpdateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	stage, err := h.svc.UpdateStage(c.Request.Context(), current, id, stageID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(stage))
}

func (h *Handler) DeleteStage(c *gin.Context) {
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

	if err := h.svc.DeleteStage(c.Request.Context(), current, id, stageID); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewMessageResponse("stage deleted"))
}

func (h *Handler) ReorderStages(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	var req model.ReorderStagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	stages, err := h.svc.ReorderStages(c.Request.Context(), current, id, req.StageIDs)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(stages))
}
