package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockClient provides deterministic local replies when no API key is set.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Complete(ctx context.Context, messages []Message, _ float64, _ int) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			text := strings.TrimSpace(messages[i].Content)
			if text == "" {
				break
			}
			return fmt.Sprintf("I hear you: %s. Tell me a bit more about how you're feeling.", text), nil
		}
	}
	return "I'm here with you. How are you feeling today?", nil
}
