// Package cache defines the response cache used in front of the evaluation workflows.
// The cache is never a source of truth.
package cache

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL bounds how long any entry may be served.
const DefaultTTL = time.Hour

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// AddToSet adds member to the set stored at key and refreshes its ttl.
	AddToSet(ctx context.Context, key, member string, ttl time.Duration) error
	// Members returns the members of the set at key; a missing set is empty.
	Members(ctx context.Context, key string) ([]string, error)

	// Size counts the live entries of this cache, tag sets included.
	Size(ctx context.Context) (int, error)

	Ping(ctx context.Context) error
	Close() error
}

func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}
