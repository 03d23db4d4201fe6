package cache

import (
	"context"
	"log"
	"strings"
)

// New creates a redis-backed cache when configured. A missing or unreachable
// redis endpoint degrades to the no-op cache instead of failing startup; the
// typing indicator and protocol cache are performance signals, not state.
func New(ctx context.Context, redisURL string) Cache {
	if strings.TrimSpace(redisURL) == "" {
		return NewNoop()
	}
	c, err := NewRedisCache(ctx, redisURL)
	if err != nil {
		log.Printf("cache: redis unavailable, continuing without cache: %v", err)
		return NewNoop()
	}
	return c
}
