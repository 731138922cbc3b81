package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/crm-api/internal/model"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/httputil"
	"github.com/jwalitptl/crm-api/pkg/validator"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewMessageResponse(message string) *Response {
	return &Response{
		Status:  "success",
		Message: message,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondError records err on the context and writes the error envelope.
// Errors that are not AppErrors are reported as internal.
func RespondError(c *gin.Context, err error) {
	_ = c.Error(err)

	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}

	c.AbortWithStatusJSON(appErr.StatusCode(), &Response{
		Status:  "error",
		Message: appErr.Message,
		Code:    appErr.Kind(),
	})
}

// RespondBindError writes a 400 envelope for a failed request bind, listing
// field level failures when the validator produced them.
func RespondBindError(c *gin.Context, err error) {
	_ = c.Error(err).SetType(gin.ErrorTypeBind)

	fields := validator.Fields(err)
	message := "invalid request body"
	if len(fields) > 0 {
		message = validator.Summary(fields)
	} else {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			message = appErr.Message
		}
	}

	resp := &Response{
		Status:  "error",
		Message: message,
		Code:    "invalid_input",
	}
	if len(fields) > 0 {
		resp.Errors = fields
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}

// RespondList writes a paginated list envelope
func RespondList(c *gin.Context, items interface{}, page model.Pagination, total int) {
	c.JSON(http.StatusOK, NewSuccessResponse(httputil.Paginate(items, page.Page, page.Limit(), total)))
}
