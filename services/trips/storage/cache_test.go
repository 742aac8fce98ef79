package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseCache(t *testing.T, c IdempotencyCache) {
	ctx := context.Background()

	_, ok, err := c.Lookup(ctx, "temp_1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Remember(ctx, "temp_1", "trip-1"))
	// the first trip bound to a token wins
	require.NoError(t, c.Remember(ctx, "temp_1", "trip-2"))

	tripID, ok, err := c.Lookup(ctx, "temp_1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "trip-1", tripID)

	require.NoError(t, c.Forget(ctx, "temp_1"))
	_, ok, err = c.Lookup(ctx, "temp_1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	exerciseCache(t, NewRedisCache(client, time.Hour))
}

func TestRedisCacheExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	c := NewRedisCache(client, time.Minute)
	require.NoError(t, c.Remember(context.Background(), "temp_1", "trip-1"))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Lookup(context.Background(), "temp_1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache(t *testing.T) {
	exerciseCache(t, NewMemoryCache(time.Hour))
}

func TestMemoryCacheExpires(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewMemoryCache(time.Minute).(*memoryCache)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Remember(context.Background(), "temp_1", "trip-1"))
	now = now.Add(2 * time.Minute)

	_, ok, err := c.Lookup(context.Background(), "temp_1")
	require.NoError(t, err)
	assert.False(t, ok)
}
