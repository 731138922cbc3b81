package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

// Context keys set by the authentication middleware
const (
	ContextUser    = "current_user"
	ContextSession = "current_session"
	ContextToken   = "access_token"
)

// CurrentUser returns the authenticated user. Routes behind the auth
// middleware always have one.
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}

func CurrentSession(c *gin.Context) *model.ActiveSession {
	v, ok := c.Get(ContextSession)
	if !ok {
		return nil
	}
	sess, _ := v.(*model.ActiveSession)
	return sess
}

func CurrentToken(c *gin.Context) string {
	return c.GetString(ContextToken)
}

// RequireUser writes a 401 and returns false when no user is bound.
func RequireUser(c *gin.Context) (*model.User, bool) {
	user := CurrentUser(c)
	if user == nil {
		RespondError(c, apperrors.Unauthorized(nil))
		return nil, false
	}
	return user, true
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func ClientInfo(c *gin.Context) model.ClientInfo {
	return model.ClientInfo{
		DeviceInfo: c.Request.UserAgent(),
		IPAddress:  c.ClientIP(),
	}
}

// ParamUUID parses a UUID path parameter, writing a 400 on failure.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, apperrors.BadRequest("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// QueryUUID parses an optional UUID query parameter.
func QueryUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		RespondError(c, apperrors.BadRequest("invalid "+name, err))
		return nil, false
	}
	return &id, true
}

// Page reads page and page_size query parameters.
func Page(c *gin.Context) (model.Pagination, bool) {
	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		RespondBindError(c, err)
		return page, false
	}
	page.Normalize()
	return page, true
}
