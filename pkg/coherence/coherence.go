// Package coherence keeps cached responses consistent with the Store. Every cache entry records
// the version of each owner (session or workflow) its payload was computed from; an entry whose
// owners have moved on is evicted instead of served.
package coherence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SaiNageswarS/NurixLearn/internal/xjson"
	"github.com/SaiNageswarS/NurixLearn/pkg/cache"
	"golang.org/x/sync/singleflight"
)

const (
	KindSession  = "session"
	KindWorkflow = "workflow"
)

var ErrUnknownOwnerKind = errors.New("unknown owner kind")

// Owner identifies the mutable state a cached response depends on.
type Owner struct {
	Kind string
	ID   string
}

func SessionOwner(socketID string) Owner    { return Owner{Kind: KindSession, ID: socketID} }
func WorkflowOwner(workflowID string) Owner { return Owner{Kind: KindWorkflow, ID: workflowID} }

func (o Owner) String() string { return o.Kind + ":" + o.ID }

func tagKey(o Owner) string { return "owner:" + o.String() }

// VersionSource reads the current Store version of an owner; absent owners are version 0.
type VersionSource interface {
	Version(ctx context.Context, owner Owner) (int64, error)
}

// VersionFunc reads the version of one owner kind.
type VersionFunc func(ctx context.Context, id string) (int64, error)

// Sources dispatches on Owner.Kind.
type Sources map[string]VersionFunc

func (s Sources) Version(ctx context.Context, owner Owner) (int64, error) {
	fn, ok := s[owner.Kind]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownOwnerKind, owner.Kind)
	}

	return fn(ctx, owner.ID)
}

// Computed is a freshly computed payload and the owner versions it reflects.
type Computed struct {
	Payload  []byte
	Versions map[Owner]int64
}

type envelope struct {
	Payload   []byte           `json:"payload"`
	Versions  map[string]int64 `json:"versions"`
	CreatedAt time.Time        `json:"created_at"`
}

type Policy struct {
	cache    cache.Cache
	versions VersionSource
	ttl      time.Duration
	logger   *slog.Logger
	group    singleflight.Group
}

// New builds a policy; ttl <= 0 selects cache.DefaultTTL.
func New(c cache.Cache, versions VersionSource, ttl time.Duration, logger *slog.Logger) *Policy {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}

	return &Policy{
		cache:    c,
		versions: versions,
		ttl:      ttl,
		logger:   logger.With("module", "coherence"),
	}
}

func (p *Policy) TTL() time.Duration { return p.ttl }

// ReadThrough returns the cached payload for key when every owner it recorded is unchanged,
// otherwise it runs compute (once per key across concurrent callers) and caches the result.
// The bool reports a cache hit.
func (p *Policy) ReadThrough(
	ctx context.Context,
	key string,
	compute func(ctx context.Context) (*Computed, error),
) ([]byte, bool, error) {
	if payload, ok := p.lookup(ctx, key); ok {
		return payload, true, nil
	}

	// The shared fill must outlive whichever caller started it; each caller stops waiting on
	// its own ctx.
	fillCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(key, func() (any, error) {
		return p.fill(fillCtx, key, compute)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}

		return res.Val.([]byte), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (p *Policy) lookup(ctx context.Context, key string) ([]byte, bool) {
	raw, err := p.cache.Get(ctx, key)
	if err != nil {
		if !cache.IsMiss(err) {
			p.logger.WarnContext(ctx, "cache read failed, computing", "key", key, "error", err)
		}

		return nil, false
	}

	var env envelope
	if err := xjson.Unmarshal(raw, &env); err != nil {
		p.evict(ctx, key, "undecodable entry")

		return nil, false
	}

	if !p.current(ctx, env.Versions) {
		p.evict(ctx, key, "owner version moved")

		return nil, false
	}

	return env.Payload, true
}

func (p *Policy) fill(ctx context.Context, key string, compute func(ctx context.Context) (*Computed, error)) ([]byte, error) {
	computed, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	env := envelope{
		Payload:   computed.Payload,
		Versions:  make(map[string]int64, len(computed.Versions)),
		CreatedAt: time.Now().UTC(),
	}
	for owner, version := range computed.Versions {
		env.Versions[owner.String()] = version
	}

	data, err := xjson.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if err := p.cache.Set(ctx, key, data, p.ttl); err != nil {
		p.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)

		return computed.Payload, nil
	}

	for owner := range computed.Versions {
		if err := p.cache.AddToSet(ctx, tagKey(owner), key, p.ttl); err != nil {
			p.logger.WarnContext(ctx, "cache tag failed", "key", key, "owner", owner.String(), "error", err)
		}
	}

	// A writer may have moved an owner while the entry was being stored.
	if !p.current(ctx, env.Versions) {
		p.evict(ctx, key, "owner moved during write")
	}

	return computed.Payload, nil
}

func (p *Policy) current(ctx context.Context, recorded map[string]int64) bool {
	for name, version := range recorded {
		owner, ok := parseOwner(name)
		if !ok {
			return false
		}

		now, err := p.versions.Version(ctx, owner)
		if err != nil {
			p.logger.WarnContext(ctx, "owner version unavailable", "owner", name, "error", err)

			return false
		}

		if now != version {
			return false
		}
	}

	return true
}

func (p *Policy) evict(ctx context.Context, key, reason string) {
	p.logger.DebugContext(ctx, "evicting cache entry", "key", key, "reason", reason)

	if err := p.cache.Delete(ctx, key); err != nil {
		p.logger.WarnContext(ctx, "cache evict failed", "key", key, "error", err)
	}
}

// Invalidate deletes every entry tagged with owner. Write paths call it after mutating the owner.
func (p *Policy) Invalidate(ctx context.Context, owner Owner) error {
	keys, err := p.cache.Members(ctx, tagKey(owner))
	if err != nil {
		return fmt.Errorf("failed to read cache tags for %s: %w", owner, err)
	}

	if err := p.cache.Delete(ctx, append(keys, tagKey(owner))...); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", owner, err)
	}

	if len(keys) > 0 {
		p.logger.DebugContext(ctx, "invalidated cache entries", "owner", owner.String(), "count", len(keys))
	}

	return nil
}

func parseOwner(s string) (Owner, bool) {
	kind, id, ok := strings.Cut(s, ":")

	return Owner{Kind: kind, ID: id}, ok
}
