// Package llm talks to the externally hosted language model. The service
// treats the model as an opaque collaborator: one Complete call per chat turn,
// any failure surfaced as a single error for the caller to absorb.
package llm

import "context"

// Message is one entry of the assembled context window.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client completes an assembled message list into reply text.
type Client interface {
	Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error)
}
