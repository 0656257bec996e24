package visitor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatsCache holds the last computed Stats for a short time.
type StatsCache interface {
	Get(ctx context.Context) (Stats, bool)
	Set(ctx context.Context, st Stats)
	Invalidate(ctx context.Context)
}

const statsKey = "dcvisitor:stats"

// RedisStatsCache stores Stats as JSON under a single key with a TTL.
// Redis failures degrade to cache misses.
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatsCache creates a cache; a non-positive ttl disables caching.
func NewRedisStatsCache(client *redis.Client, ttl time.Duration) *RedisStatsCache {
	return &RedisStatsCache{client: client, ttl: ttl}
}

func (c *RedisStatsCache) Get(ctx context.Context) (Stats, bool) {
	if c.ttl <= 0 {
		return Stats{}, false
	}
	raw, err := c.client.Get(ctx, statsKey).Bytes()
	if err != nil {
		return Stats{}, false
	}
	var st Stats
	if err := json.Unmarshal(raw, &st); err != nil {
		return Stats{}, false
	}
	return st, true
}

func (c *RedisStatsCache) Set(ctx context.Context, st Stats) {
	if c.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, statsKey, raw, c.ttl).Err()
}

func (c *RedisStatsCache) Invalidate(ctx context.Context) {
	_ = c.client.Del(ctx, statsKey).Err()
}

// MemoryStatsCache is the in-process fallback used with the memory queue backend.
type MemoryStatsCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	st      Stats
	expires time.Time
}

// NewMemoryStatsCache creates an in-process cache.
func NewMemoryStatsCache(ttl time.Duration) *MemoryStatsCache {
	return &MemoryStatsCache{ttl: ttl, now: time.Now}
}

func (c *MemoryStatsCache) Get(context.Context) (Stats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expires.IsZero() || !c.now().Before(c.expires) {
		return Stats{}, false
	}
	return c.st, true
}

func (c *MemoryStatsCache) Set(_ context.Context, st Stats) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.st = st
	c.expires = c.now().Add(c.ttl)
	c.mu.Unlock()
}

func (c *MemoryStatsCache) Invalidate(context.Context) {
	c.mu.Lock()
	c.expires = time.Time{}
	c.mu.Unlock()
}
