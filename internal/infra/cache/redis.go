package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/buildforge/internal/core/domain"
)

// PayloadStore is the subset of the Redis client the cache needs.
type PayloadStore interface {
	GetPayload(ctx context.Context, key string) ([]byte, bool, error)
	SetPayload(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// RedisCache persists entries as JSON envelopes. Freshness is decided by the
// envelope's expires_at; the Redis TTL only bounds how long stale data lives.
type RedisCache struct {
	store          PayloadStore
	staleRetention time.Duration
	now            func() time.Time
	log            *slog.Logger
}

// NewRedisCache creates a Redis backed cache.
func NewRedisCache(store PayloadStore, staleRetention time.Duration) *RedisCache {
	return &RedisCache{
		store:          store,
		staleRetention: staleRetention,
		now:            time.Now,
		log:            slog.Default().With("component", "redis_cache"),
	}
}

// SetClock overrides the time source.
func (c *RedisCache) SetClock(now func() time.Time) {
	c.now = now
}

// Get returns a fresh value; Redis errors are logged and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (domain.Payload, bool) {
	entry, ok := c.load(ctx, key)
	if !ok || !entry.Fresh(c.now()) {
		return nil, false
	}
	return entry.Value, true
}

// GetStale returns the stored value even if expired.
func (c *RedisCache) GetStale(ctx context.Context, key string) (domain.Payload, bool) {
	entry, ok := c.load(ctx, key)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// Set stores value under key.
func (c *RedisCache) Set(ctx context.Context, key string, value domain.Payload, ttl time.Duration) error {
	entry := Entry{Key: key, Value: value, ExpiresAt: c.now().Add(ttl)}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	redisTTL := max(ttl, 0) + c.staleRetention
	if redisTTL <= 0 {
		redisTTL = time.Minute
	}
	if err := c.store.SetPayload(ctx, key, data, redisTTL); err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}
	return nil
}

func (c *RedisCache) load(ctx context.Context, key string) (Entry, bool) {
	data, ok, err := c.store.GetPayload(ctx, key)
	if err != nil {
		c.log.Warn("Cache read failed", "key", key, "error", err)
		return Entry{}, false
	}
	if !ok {
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.log.Warn("Discarding undecodable cache entry", "key", key, "error", err)
		return Entry{}, false
	}
	return entry, true
}
