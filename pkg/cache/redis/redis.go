// Package redis implements cache.Cache on Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SaiNageswarS/NurixLearn/pkg/cache"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

type Cache struct {
	client    *redis.Client
	keyPrefix string
	logger    *slog.Logger
}

// New connects using a redis:// URL and verifies the connection.
func New(ctx context.Context, logger *slog.Logger, url, keyPrefix string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	c := NewWithClient(logger, redis.NewClient(opts), keyPrefix)

	if err := c.Ping(ctx); err != nil {
		_ = c.Close()

		return nil, err
	}

	logger.InfoContext(ctx, "connected to redis cache", "module", "redis_cache", "addr", opts.Addr)

	return c, nil
}

func NewWithClient(logger *slog.Logger, client *redis.Client, keyPrefix string) *Cache {
	return &Cache{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger.With("module", "redis_cache"),
	}
}

func (c *Cache) key(k string) string {
	return c.keyPrefix + k
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrMiss
		}

		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	return value, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.key(k)
	}

	if err := c.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}

	return n > 0, nil
}

func (c *Cache) AddToSet(ctx context.Context, key, member string, ttl time.Duration) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, c.key(key), member)
		pipe.Expire(ctx, c.key(key), ttl)

		return nil
	})
	if err != nil {
		return fmt.Errorf("redis sadd %s: %w", key, err)
	}

	return nil
}

func (c *Cache) Members(ctx context.Context, key string) ([]string, error) {
	members, err := c.client.SMembers(ctx, c.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w", key, err)
	}

	return members, nil
}

// Size scans the keys under this cache's prefix.
func (c *Cache) Size(ctx context.Context) (int, error) {
	n := 0

	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		n++
	}

	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}

	return n, nil
}

func (c *Cache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}
