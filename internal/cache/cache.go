// Package cache provides the ephemeral signal store: short-lived typing
// indicator flags and a day-scale protocol list cache. Every operation is
// best-effort; failures are logged and degrade to "value absent" rather than
// failing the request that triggered them.
package cache

import (
	"context"
	"time"

	"github.com/dishahealth/disha/internal/store"
)

const (
	// TypingTTL bounds how long a typing flag survives if never cleared.
	TypingTTL = 30 * time.Second
	// ProtocolTTL bounds the cached protocol list.
	ProtocolTTL = 24 * time.Hour
)

// Cache is the ephemeral signal store.
type Cache interface {
	SetTyping(ctx context.Context, userID string, typing bool)
	IsTyping(ctx context.Context, userID string) bool

	CachedProtocols(ctx context.Context) ([]store.Protocol, bool)
	StoreProtocols(ctx context.Context, protocols []store.Protocol)

	Close() error
}

// Noop discards writes and reports every value as absent. Used when no redis
// endpoint is configured.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) SetTyping(context.Context, string, bool) {}

func (Noop) IsTyping(context.Context, string) bool { return false }

func (Noop) CachedProtocols(context.Context) ([]store.Protocol, bool) { return nil, false }

func (Noop) StoreProtocols(context.Context, []store.Protocol) {}

func (Noop) Close() error { return nil }
