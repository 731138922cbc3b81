package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jwalitptl/crm-api/pkg/circuitbreaker"
	"github.com/jwalitptl/crm-api/pkg/logger"
)

type OpenAIConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	Temperature   float64
	MaxTokens     int
	Timeout       time.Duration
	BreakerFails  uint32
	BreakerPeriod time.Duration
}

// OpenAICompleter calls an OpenAI compatible chat completions endpoint
type OpenAICompleter struct {
	cfg     OpenAIConfig
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

func NewOpenAICompleter(cfg OpenAIConfig, log *logger.Logger) *OpenAICompleter {
	return &OpenAICompleter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:                "assistant-provider",
			Timeout:             cfg.BreakerPeriod,
			ConsecutiveFailures: cfg.BreakerFails,
		}, log.Zerolog()),
	}
}

func (c *OpenAICompleter) Name() string { return "openai" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *OpenAICompleter) Complete(ctx context.Context, messages []ChatMessage) (*Completion, error) {
	var out *Completion
	err := c.breaker.Execute(func() error {
		var err error
		out, err = c.call(ctx, messages)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OpenAICompleter) call(ctx context.Context, messages []ChatMessage) (*Completion, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode completion request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("completion provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("completion provider returned no choices")
	}

	return &Completion{
		Content: decoded.Choices[0].Message.Content,
		Tokens:  decoded.Usage.TotalTokens,
		Model:   decoded.Model,
	}, nil
}
