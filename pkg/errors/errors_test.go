package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMapping(t *testing.T) {
	cause := stderrors.New("boom")

	tests := []struct {
		name   string
		err    *AppError
		status int
		kind   string
	}{
		{"not found", NotFound("customer", nil), http.StatusNotFound, "not_found"},
		{"bad request", BadRequest("bad", nil), http.StatusBadRequest, "invalid_input"},
		{"unauthorized", Unauthorized(nil), http.StatusUnauthorized, "unauthenticated"},
		{"forbidden", Forbidden("admin only"), http.StatusForbidden, "forbidden"},
		{"conflict", Conflict("in use", nil), http.StatusConflict, "conflict"},
		{"unavailable", NewUnavailable("provider down", cause), http.StatusServiceUnavailable, "unavailable"},
		{"internal", Internal(cause), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode())
			assert.Equal(t, tt.kind, tt.err.Kind())
		})
	}
}

func TestAsAndIs(t *testing.T) {
	cause := stderrors.New("no rows")
	wrapped := fmt.Errorf("loading: %w", NotFound("pipeline", cause))

	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "pipeline not found", appErr.Message)
	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, Is(wrapped, ErrNotFound))
	assert.False(t, Is(wrapped, ErrConflict))

	_, ok = As(cause)
	assert.False(t, ok)
}
