// Package memory implements cache.Cache in process on a bounded LRU with per-entry expiry.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/SaiNageswarS/NurixLearn/pkg/cache"
	lru "github.com/hashicorp/golang-lru"
)

const DefaultSize = 10_000

type entry struct {
	value     []byte
	members   map[string]struct{}
	expiresAt time.Time
}

type Cache struct {
	items *lru.Cache
	now   func() time.Time
	// guards read-modify-write of set entries; plain values go straight to the LRU.
	setMu sync.Mutex
}

func New(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}

	items, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru: %w", err)
	}

	return &Cache{items: items, now: time.Now}, nil
}

// WithClock overrides the time source; tests use it to expire entries.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now

	return c
}

func (c *Cache) live(key string) (*entry, bool) {
	raw, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}

	e := raw.(*entry)
	if !c.now().Before(e.expiresAt) {
		c.items.Remove(key)

		return nil, false
	}

	return e, true
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := c.live(key)
	if !ok || e.members != nil {
		return nil, cache.ErrMiss
	}

	return slices.Clone(e.value), nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.items.Add(key, &entry{value: slices.Clone(value), expiresAt: c.now().Add(ttl)})

	return nil
}

func (c *Cache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.items.Remove(k)
	}

	return nil
}

func (c *Cache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := c.live(key)

	return ok, nil
}

func (c *Cache) AddToSet(_ context.Context, key, member string, ttl time.Duration) error {
	c.setMu.Lock()
	defer c.setMu.Unlock()

	members := map[string]struct{}{}
	if e, ok := c.live(key); ok && e.members != nil {
		for m := range e.members {
			members[m] = struct{}{}
		}
	}

	members[member] = struct{}{}
	c.items.Add(key, &entry{members: members, expiresAt: c.now().Add(ttl)})

	return nil
}

func (c *Cache) Members(_ context.Context, key string) ([]string, error) {
	c.setMu.Lock()
	defer c.setMu.Unlock()

	e, ok := c.live(key)
	if !ok || e.members == nil {
		return []string{}, nil
	}

	out := make([]string, 0, len(e.members))
	for m := range e.members {
		out = append(out, m)
	}

	slices.Sort(out)

	return out, nil
}

func (c *Cache) Size(_ context.Context) (int, error) {
	now := c.now()
	n := 0

	for _, k := range c.items.Keys() {
		if raw, ok := c.items.Peek(k); ok && now.Before(raw.(*entry).expiresAt) {
			n++
		}
	}

	return n, nil
}

func (c *Cache) Ping(_ context.Context) error { return nil }

func (c *Cache) Close() error {
	c.items.Purge()

	return nil
}
