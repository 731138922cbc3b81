package invitation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/invitation"
)

type Handler struct {
	svc *invitation.Service
}

func NewHandler(svc *invitation.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the token endpoints used by invitees
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/invitations/accept", h.Accept)
	r.GET("/invitations/verify/:token", h.Verify)
}

// RegisterAdminRoutes mounts invitation management
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/invitations", h.Create)
	r.GET("/invitations", h.List)
	r.DELETE("/invitations/:id", h.Cancel)
}

func (h *Handler) Create(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	var req model.CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	inv, err := h.svc.Create(c.Request.Context(), current, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(inv))
}

func (h *Handler) List(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	invs, err := h.svc.List(c.Request.Context(), current)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(invs))
}

func (h *Handler) Cancel(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Cancel(c.Request.Context(), current, id); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewMessageResponse("invitation cancelled"))
}

func (h *Handler) Verify(c *gin.Context) {
	v, err := h.svc.Verify(c.Request.Context(), c.Param("token"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(v))
}

func (h *Handler) Accept(c *gin.Context) {
	var req model.AcceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	tokens, err := h.svc.Accept(c.Request.Context(), &req, handler.ClientInfo(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(tokens))
}
