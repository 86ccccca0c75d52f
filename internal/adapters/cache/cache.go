// Package cache provides the short-lived read-through cache that fronts the
// scorecard store, with synchronous invalidation for writers.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/okian/scorecard/pkg/logger"
	"github.com/okian/scorecard/pkg/metrics"
)

const (
	defaultTTL    = 60 * time.Second
	defaultMaxTTL = 5 * time.Minute
	defaultSize   = 10_000
)

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithTTL sets the TTL used when callers pass zero.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMaxTTL caps per-call TTLs.
func WithMaxTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.maxTTL = ttl
		}
	}
}

// WithSize bounds the number of entries.
func WithSize(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.size = n
		}
	}
}

// WithClock overrides the time source used for entry expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a TTL-bounded snapshot cache. It is never the system of record.
type Cache struct {
	ttl    time.Duration
	maxTTL time.Duration
	size   int
	now    func() time.Time
	log    logger.Logger

	entries *expirable.LRU[string, entry]
	flights singleflight.Group

	// generation advances on every invalidation; suppliers that started
	// under an older generation do not store their result. mu makes the
	// generation check and the store atomic with respect to invalidation.
	mu         sync.Mutex
	generation atomic.Uint64
}

// New creates a cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:    defaultTTL,
		maxTTL: defaultMaxTTL,
		size:   defaultSize,
		now:    time.Now,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxTTL < c.ttl {
		c.maxTTL = c.ttl
	}
	c.entries = expirable.NewLRU[string, entry](c.size, nil, c.maxTTL)
	return c
}

// Supplier computes a value on a cache miss.
type Supplier func(ctx context.Context) (any, error)

// Cached returns the snapshot under key, calling supplier on a miss and
// storing its result for ttl (the default TTL when ttl is zero). Concurrent
// misses for the same key share one supplier call. Errors are not cached.
func (c *Cache) Cached(ctx context.Context, key string, ttl time.Duration, supplier Supplier) (any, error) {
	if v, ok := c.lookup(key); ok {
		metrics.RecordCacheHit(family(key))
		return v, nil
	}
	metrics.RecordCacheMiss(family(key))

	gen := c.generation.Load()
	v, err, shared := c.flights.Do(fmt.Sprintf("%d|%s", gen, key), func() (any, error) {
		value, err := supplier(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, value, gen, c.now().Add(c.clampTTL(ttl)))
		return value, nil
	})
	if shared {
		c.log.Debug(ctx, "cache miss coalesced", logger.String("key", key))
	}
	return v, err
}

// store keeps value unless an invalidation happened since gen was read.
func (c *Cache) store(key string, value any, gen uint64, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation.Load() != gen {
		return
	}
	c.entries.Add(key, entry{value: value, expiresAt: expiresAt})
	metrics.UpdateCacheEntries(c.entries.Len())
}

// Fetch is the typed form of Cached.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, supplier func(context.Context) (T, error)) (T, error) {
	v, err := c.Cached(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return supplier(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, errors.Newf("cache key %q holds %T", key, v)
	}
	return typed, nil
}

func (c *Cache) lookup(key string) (any, bool) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.entries.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) clampTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl <= 0:
		return c.ttl
	case ttl > c.maxTTL:
		return c.maxTTL
	default:
		return ttl
	}
}

// Invalidate removes the given keys immediately and returns how many existed.
func (c *Cache) Invalidate(keys ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation.Add(1)
	removed := 0
	for _, k := range keys {
		if c.entries.Remove(k) {
			removed++
		}
	}
	metrics.RecordCacheInvalidation("key", removed)
	metrics.UpdateCacheEntries(c.entries.Len())
	return removed
}

// InvalidateByPattern removes every key starting with prefix.
func (c *Cache) InvalidateByPattern(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation.Add(1)
	removed := 0
	for _, k := range c.entries.Keys() {
		if strings.HasPrefix(k, prefix) && c.entries.Remove(k) {
			removed++
		}
	}
	metrics.RecordCacheInvalidation("prefix", removed)
	metrics.UpdateCacheEntries(c.entries.Len())
	return removed
}

// InvalidateAgent drops everything a scorecard write for agentID can make
// stale: the agent's metrics keys, the agent list, the agent entry and all
// aggregates.
func (c *Cache) InvalidateAgent(ctx context.Context, agentID string) {
	n := c.Invalidate(AgentMetricsKey(agentID), AgentListKey(), AgentKey(agentID))
	n += c.InvalidateByPattern(AgentMetricsPrefix(agentID))
	n += c.InvalidateByPattern(RollupPrefix)
	c.log.Debug(ctx, "cache invalidated for agent", logger.String("agent_id", agentID), logger.Int("removed", n))
}

// Len returns the number of live and not yet reaped entries.
func (c *Cache) Len() int { return c.entries.Len() }

// Purge empties the cache.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation.Add(1)
	c.entries.Purge()
	metrics.UpdateCacheEntries(0)
}
