package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/crm-api/pkg/circuitbreaker"
	"github.com/jwalitptl/crm-api/pkg/logger"
)

func TestOpenAICompleter(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"m1","choices":[{"message":{"role":"assistant","content":"hi there"}}],"usage":{"total_tokens":12}}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter(OpenAIConfig{APIKey: "key", BaseURL: srv.URL + "/v1/", Model: "m1", Timeout: time.Second}, logger.Nop())
	out, err := c.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "hello"}})
	require.NoError(t, err)
	assert.Equal(t, "hi there", out.Content)
	assert.Equal(t, 12, out.Tokens)
	assert.Equal(t, "m1", got.Model)
	require.Len(t, got.Messages, 1)
}

func TestOpenAICompleterTripsBreaker(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewOpenAICompleter(OpenAIConfig{
		BaseURL:       srv.URL,
		Timeout:       time.Second,
		BreakerFails:  2,
		BreakerPeriod: time.Minute,
	}, logger.Nop())

	for i := 0; i < 2; i++ {
		_, err := c.Complete(context.Background(), nil)
		require.Error(t, err)
	}
	_, err := c.Complete(context.Background(), nil)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 2, calls)
}
