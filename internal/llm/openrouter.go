package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dishahealth/disha/internal/reliability"
)

// OpenRouterConfig controls the OpenAI-compatible chat completions client.
type OpenRouterConfig struct {
	APIKey  string
	Model   string
	BaseURL string        // default: https://openrouter.ai/api/v1
	Timeout time.Duration // default: 60s
}

const (
	completionAttempts = 3
	retryBackoffBase   = 250 * time.Millisecond
	retryBackoffCap    = 2 * time.Second
)

// OpenRouterClient calls an OpenAI-compatible /chat/completions endpoint.
// Transient upstream failures (429, 5xx) are retried with capped backoff
// before the error surfaces to the circuit breaker.
type OpenRouterClient struct {
	cfg    OpenRouterConfig
	client *http.Client
}

func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenRouterClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenRouterClient) Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	payload, err := json.Marshal(chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < completionAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(reliability.Backoff(attempt-1, retryBackoffBase, retryBackoffCap)):
			}
		}

		reply, status, err := c.complete(ctx, payload)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !reliability.RetryableStatus(status) {
			return "", err
		}
	}
	return "", lastErr
}

func (c *OpenRouterClient) complete(ctx context.Context, payload []byte) (string, int, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	res, err := c.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", res.StatusCode, fmt.Errorf("model endpoint status %d: %s", res.StatusCode, string(body))
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return "", res.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", res.StatusCode, fmt.Errorf("model endpoint returned no choices")
	}

	return decoded.Choices[0].Message.Content, res.StatusCode, nil
}
