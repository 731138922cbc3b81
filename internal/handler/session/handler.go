package session

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/service/session"
)

type Handler struct {
	svc *session.Service
}

func NewHandler(svc *session.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	sessions := r.Group("/sessions")
	{
		sessions.GET("", h.List)
		sessions.DELETE("/all", h.RevokeAll)
		sessions.DELETE("/all/except-current", h.RevokeOthers)
		sessions.DELETE("/:id", h.Revoke)
	}
}

func (h *Handler) List(c *gin.Context) {
	user, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	views, err := h.svc.ListActive(c.Request.Context(), user.ID, handler.CurrentToken(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(views))
}

func (h *Handler) Revoke(c *gin.Context) {
	user, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.RevokeSession(c.Request.Context(), id, user.ID); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewMessageResponse("session revoked"))
}

func (h *Handler) RevokeAll(c *gin.Context) {
	h.revokeAll(c, "")
}

func (h *Handler) RevokeOthers(c *gin.Context) {
	h.revokeAll(c, handler.CurrentToken(c))
}

func (h *Handler) revokeAll(c *gin.Context, exceptToken string) {
	user, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	n, err := h.svc.RevokeAll(c.Request.Context(), user.ID, exceptToken)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"revoked": n}))
}
