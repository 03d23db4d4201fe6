package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/dishahealth/disha/internal/cache"
	"github.com/dishahealth/disha/internal/chat"
	"github.com/dishahealth/disha/internal/config"
	"github.com/dishahealth/disha/internal/httpapi"
	"github.com/dishahealth/disha/internal/llm"
	"github.com/dishahealth/disha/internal/memory"
	"github.com/dishahealth/disha/internal/observability"
	"github.com/dishahealth/disha/internal/protocols"
	"github.com/dishahealth/disha/internal/store"
)

type BuildResult struct {
	Config    config.Config
	API       *httpapi.Server
	Store     store.Store
	Cache     cache.Cache
	Generator *chat.Generator
	Metrics   *observability.Metrics

	// Cleanup should be called on shutdown to release external resources
	// (DB pool, redis connection).
	Cleanup func() error
}

// Build wires the full service: storage, cache, protocol source, memory
// accessor, model client, chat pipeline and the HTTP API. It also seeds the
// reference protocol set so a fresh deployment matches keywords immediately.
func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	st, err := store.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}

	if err := st.SeedProtocols(ctx, store.DefaultProtocols()); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("protocol seed failed: %w", err)
	}

	c := cache.New(ctx, cfg.RedisURL)

	accessor := memory.NewAccessor(st, st)
	source := protocols.NewCachedSource(st, c)

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.AIAPIKey,
		Model:   cfg.AIModel,
		BaseURL: cfg.AIBaseURL,
		Timeout: cfg.AITimeout,
	})

	assembler := chat.NewAssembler(st, accessor, source, metrics, cfg.MaxContextMessages, cfg.MaxInputTokens)
	generator := chat.NewGenerator(assembler, client, accessor, metrics, cfg.AITemperature, cfg.AIMaxTokens, cfg.MemoryExtractionInterval)

	api := httpapi.New(cfg, st, c, generator, metrics)

	cleanup := func() error {
		var errs []string
		if err := c.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := st.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:    cfg,
		API:       api,
		Store:     st,
		Cache:     c,
		Generator: generator,
		Metrics:   metrics,
		Cleanup:   cleanup,
	}, nil
}
