package services

import (
	"context"
	"fmt"

	"github.com/SaiNageswarS/NurixLearn/pkg/cache"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
)

type Health struct {
	store persistence.Store
	cache cache.Cache
}

func NewHealth(store persistence.Store, c cache.Cache) *Health {
	return &Health{store: store, cache: c}
}

// Check reports the state of the store and the cache. The service is healthy only when the
// store is; a cache outage degrades to recomputation.
func (h *Health) Check(ctx context.Context) (map[string]string, bool) {
	checks := map[string]string{}
	healthy := true

	if err := h.store.HealthCheck(ctx); err != nil {
		checks["store"] = "unhealthy: " + err.Error()
		healthy = false
	} else {
		checks["store"] = "healthy"
	}

	if err := h.cache.Ping(ctx); err != nil {
		checks["cache"] = "degraded: " + err.Error()
	} else {
		checks["cache"] = "healthy"
	}

	return checks, healthy
}

type CacheStats struct {
	Entries int `json:"cache_size"`
}

// CacheStats reports how many entries the response cache holds.
func (h *Health) CacheStats(ctx context.Context) (*CacheStats, error) {
	n, err := h.cache.Size(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to size cache: %w", err)
	}

	return &CacheStats{Entries: n}, nil
}
