package llm

import (
	"log"
	"strings"
	"time"
)

// Config controls client construction.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// NewClient creates the OpenRouter client behind a circuit breaker when an API
// key is configured, otherwise a mock client for local development.
func NewClient(cfg Config) Client {
	if strings.TrimSpace(cfg.APIKey) == "" {
		log.Printf("llm: no API key configured, using mock client")
		return NewMockClient()
	}
	return NewBreakerClient(NewOpenRouterClient(OpenRouterConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}))
}
