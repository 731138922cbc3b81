package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/model"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

// Authenticator resolves a bearer token to the user and session behind it
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, *model.ActiveSession, error)
}

type AuthMiddleware struct {
	sessions Authenticator
}

func NewAuthMiddleware(sessions Authenticator) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// Authenticate verifies the bearer token against the live session store and
// binds the user, session and token to the request context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := handler.BearerToken(c)
		if !ok {
			handler.RespondError(c, apperrors.Unauthorized(nil))
			return
		}

		user, sess, err := m.sessions.Authenticate(c.Request.Context(), token)
		if err != nil {
			handler.RespondError(c, err)
			return
		}

		c.Set(handler.ContextUser, user)
		c.Set(handler.ContextSession, sess)
		c.Set(handler.ContextToken, token)
		c.Next()
	}
}

// RequireRole rejects users whose role is not in roles
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := handler.RequireUser(c)
		if !ok {
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		handler.RespondError(c, apperrors.Forbidden("insufficient role"))
	}
}

// RequireAdmin is RequireRole for the admin role
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return m.RequireRole(model.RoleAdmin)
}
