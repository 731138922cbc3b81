package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/user"
)

type Handler struct {
	svc *user.Service
}

func NewHandler(svc *user.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the profile endpoints on r and the admin endpoints on admin
func (h *Handler) RegisterRoutes(r, admin *gin.RouterGroup) {
	r.GET("/users/me", h.Me)
	r.PUT("/users/me", h.UpdateMe)

	admin.GET("/users", h.List)
	admin.PUT("/users/:id/active", h.SetActive)
}

func (h *Handler) Me(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	u, err := h.svc.Me(c.Request.Context(), current.ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(u))
}

func (h *Handler) UpdateMe(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	var req model.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	u, err := h.svc.UpdateMe(c.Request.Context(), current.ID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(u))
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

	users, total, err := h.svc.List(c.Request.Context(), current, page)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	handler.RespondList(c, users, page, total)
}

func (h *Handler) SetActive(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	var req model.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	u, err := h.svc.SetActive(c.Request.Context(), current, id, *req.IsActive)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(u))
}
