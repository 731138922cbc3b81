package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/crm-api/internal/handler"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

// ErrorHandler logs errors recorded on the context. Handlers that recorded
// an error without writing a response get the error envelope here.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			var event *zerolog.Event
			appErr, ok := apperrors.As(e.Err)
			switch {
			case e.IsType(gin.ErrorTypeBind):
				event = log.Debug()
			case ok && appErr.StatusCode() < 500:
				event = log.Warn()
			default:
				event = log.Error()
			}
			event.
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}
		handler.RespondError(c, c.Errors.Last().Err)
	}
}
