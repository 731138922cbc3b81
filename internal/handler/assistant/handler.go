package assistant

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/assistant"
)

type Handler struct {
	svc *assistant.Service
}

func NewHandler(svc *assistant.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	a := r.Group("/assistant")
	{
		a.POST("/query", h.Query)
		a.GET("/conversations", h.ListConversations)
		a.GET("/conversations/:id/messages", h.Messages)
		a.DELETE("/conversations/:id", h.Archive)
		a.GET("/help/:topic", h.Help)
	}
}

func (h *Handler) Query(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	var req model.AssistantQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	resp, err := h.svc.Query(c.Request.Context(), current, req.Query, req.ConversationID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) Help(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	resp, err := h.svc.Help(c.Request.Context(), current, c.Param("topic"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) ListConversations(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	page, ok := handler.Page(c)
	if !ok {
		return
	}

	convs, err := h.svc.ListConversations(c.Request.Context(), current, page)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(convs))
}

func (h *Handler) Messages(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	msgs, err := h.svc.Messages(c.Request.Context(), current, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(msgs))
}

func (h *Handler) Archive(c *gin.Context) {
	current, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Archive(c.Request.Context(), current, id); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewMessageResponse("conversation archived"))
}
