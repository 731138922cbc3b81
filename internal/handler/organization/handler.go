package organization

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/organization"
)

type Handler struct {
	svc *organization.Service
}

func NewHandler(svc *organization.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r, admin *gin.RouterGroup) {
	r.GET("/organization", h.Get)
	admin.PUT("/organization", h.Update)
}

func (h *Handler) Get(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	org, err := h.svc.Get(c.Request.Context(), current.OrganizationID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(org))
}

func (h *Handler) Update(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	var req model.UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	org, err := h.svc.Update(c.Request.Context(), current, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(org))
}
