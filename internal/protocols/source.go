package protocols

import (
	"context"

	"github.com/dishahealth/disha/internal/cache"
	"github.com/dishahealth/disha/internal/store"
)

// Source lists the protocol set for matching.
type Source interface {
	Protocols(ctx context.Context) ([]store.Protocol, error)
}

// CachedSource fronts the protocol store with the day-scale protocol cache.
// Cache misses and cache failures both fall through to the store.
type CachedSource struct {
	store store.ProtocolStore
	cache cache.Cache
}

func NewCachedSource(st store.ProtocolStore, c cache.Cache) *CachedSource {
	return &CachedSource{store: st, cache: c}
}

func (s *CachedSource) Protocols(ctx context.Context) ([]store.Protocol, error) {
	if cached, ok := s.cache.CachedProtocols(ctx); ok {
		return cached, nil
	}

	protocols, err := s.store.ListProtocols(ctx)
	if err != nil {
		return nil, err
	}
	if len(protocols) > 0 {
		s.cache.StoreProtocols(ctx, protocols)
	}
	return protocols, nil
}
