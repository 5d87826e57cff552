package leadsync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SyncCache remembers when each company last completed a successful provider fetch.
type SyncCache interface {
	Get(ctx context.Context, companyID string) (time.Time, bool, error)
	Set(ctx context.Context, companyID string, at time.Time) error
	Invalidate(ctx context.Context, companyID string) error
}

// MemoryCache is a process-local SyncCache.
type MemoryCache struct {
	mu   sync.RWMutex
	last map[string]time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{last: make(map[string]time.Time)}
}

func (c *MemoryCache) Get(ctx context.Context, companyID string) (time.Time, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	at, ok := c.last[companyID]
	return at, ok, nil
}

func (c *MemoryCache) Set(ctx context.Context, companyID string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[companyID] = at
	return nil
}

func (c *MemoryCache) Invalidate(ctx context.Context, companyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.last, companyID)
	return nil
}

const (
	redisKeyPrefix  = "leadsync:last_fetch:"
	defaultRedisTTL = 24 * time.Hour
)

// RedisCache shares fetch timestamps across API replicas. Values are unix milliseconds.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache. A non-positive ttl uses 24h.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if client == nil {
		panic("leadsync: redis client required")
	}
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, companyID string) (time.Time, bool, error) {
	raw, err := c.client.Get(ctx, redisKey(companyID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("leadsync: get last fetch: %w", err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("leadsync: parse last fetch %q: %w", raw, err)
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

func (c *RedisCache) Set(ctx context.Context, companyID string, at time.Time) error {
	if err := c.client.Set(ctx, redisKey(companyID), strconv.FormatInt(at.UnixMilli(), 10), c.ttl).Err(); err != nil {
		return fmt.Errorf("leadsync: set last fetch: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, companyID string) error {
	if err := c.client.Del(ctx, redisKey(companyID)).Err(); err != nil {
		return fmt.Errorf("leadsync: invalidate last fetch: %w", err)
	}
	return nil
}

func redisKey(companyID string) string {
	return redisKeyPrefix + companyID
}
