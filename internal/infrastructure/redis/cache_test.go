package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/avatarctic/tenancy-engine/configs"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "short", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "forever", []byte("b"), 0))

	v, ok, _ := c.Get(ctx, "short")
	assert.True(t, ok)
	assert.Equal(t, []byte("a"), v)

	now = now.Add(time.Minute)
	_, ok, _ = c.Get(ctx, "short")
	assert.False(t, ok, "entry expires exactly at its ttl")

	_, ok, _ = c.Get(ctx, "forever")
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "forever"))
	_, ok, _ = c.Get(ctx, "forever")
	assert.False(t, ok)
}

func TestMemoryCacheCopiesValues(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	in := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", in, time.Minute))
	in[0] = 'z'

	out, _, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), out)
	out[1] = 'z'

	again, _, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestRedisCacheNamespacing(t *testing.T) {
	assert.Equal(t, "k", NewRedisCache(nil, "").namespaced("k"))
	assert.Equal(t, "tenancy:property:1", NewRedisCache(nil, "tenancy").namespaced("property:1"))
}

func TestClientOptions(t *testing.T) {
	opts := clientOptions(&config.RedisConfig{Host: "cache.internal", Port: "6380", DB: 2, PoolSize: 20})
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 20, opts.PoolSize)
}
