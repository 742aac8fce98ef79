package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "trips:idempotency:"

// IdempotencyCache remembers which trip a client temp id produced so retried
// creates are answered without touching the database. The unique index on
// trips.client_temp_id stays the source of truth.
type IdempotencyCache interface {
	Lookup(ctx context.Context, clientTempID string) (string, bool, error)
	Remember(ctx context.Context, clientTempID, tripID string) error
	Forget(ctx context.Context, clientTempID string) error
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) IdempotencyCache {
	return &redisCache{client: client, ttl: ttl}
}

func (c *redisCache) Lookup(ctx context.Context, clientTempID string) (string, bool, error) {
	tripID, err := c.client.Get(ctx, idempotencyPrefix+clientTempID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis idempotency lookup: %w", err)
	}
	return tripID, true, nil
}

// Remember keeps the first trip id written for a token.
func (c *redisCache) Remember(ctx context.Context, clientTempID, tripID string) error {
	if err := c.client.SetNX(ctx, idempotencyPrefix+clientTempID, tripID, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency store: %w", err)
	}
	return nil
}

func (c *redisCache) Forget(ctx context.Context, clientTempID string) error {
	if err := c.client.Del(ctx, idempotencyPrefix+clientTempID).Err(); err != nil {
		return fmt.Errorf("redis idempotency delete: %w", err)
	}
	return nil
}

type memoryEntry struct {
	tripID    string
	expiresAt time.Time
}

type memoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryCache is the single-process cache used when no Redis is configured.
func NewMemoryCache(ttl time.Duration) IdempotencyCache {
	return &memoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (c *memoryCache) Lookup(_ context.Context, clientTempID string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[clientTempID]
	if !ok {
		return "", false, nil
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, clientTempID)
		return "", false, nil
	}
	return e.tripID, true, nil
}

func (c *memoryCache) Remember(_ context.Context, clientTempID, tripID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[clientTempID]; ok && c.now().Before(e.expiresAt) {
		return nil
	}
	c.entries[clientTempID] = memoryEntry{tripID: tripID, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *memoryCache) Forget(_ context.Context, clientTempID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, clientTempID)
	return nil
}
