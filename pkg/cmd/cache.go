package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/SaiNageswarS/NurixLearn/pkg/cache"
	"github.com/SaiNageswarS/NurixLearn/pkg/cache/memory"
	"github.com/SaiNageswarS/NurixLearn/pkg/cache/redis"
)

const cacheKeyPrefix = "nurix:"

// NewCache picks the cache backend from the scheme of cacheURL; anything but redis:// and
// rediss:// gets the in-process cache.
func NewCache(ctx context.Context, logger *slog.Logger, cacheURL string) (cache.Cache, error) {
	if strings.HasPrefix(cacheURL, "redis://") || strings.HasPrefix(cacheURL, "rediss://") {
		c, err := redis.New(ctx, logger, cacheURL, cacheKeyPrefix)
		if err != nil {
			return nil, err
		}

		return c, nil
	}

	c, err := memory.New(memory.DefaultSize)
	if err != nil {
		return nil, err
	}

	return c, nil
}
