package llm

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerClient wraps a Client with a circuit breaker so a failing model
// endpoint sheds load quickly instead of holding every chat turn for the full
// request timeout.
type BreakerClient struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerClient(inner Client) *BreakerClient {
	return &BreakerClient{
		inner: inner,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "llm",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

func (c *BreakerClient) Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		return c.inner.Complete(ctx, messages, temperature, maxTokens)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}
