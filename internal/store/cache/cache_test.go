package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/nulzo/polychat/internal/config"
	"github.com/nulzo/polychat/internal/store/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type answer struct {
	Text string `json:"text"`
}

func TestMemoryCache_RoundTrip(t *testing.T) {
	c := cache.NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", answer{Text: "hello"}, time.Minute))

	var got answer
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "hello", got.Text)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), cache.ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := cache.NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "old", answer{Text: "x"}, -time.Second))
	require.NoError(t, c.Set(ctx, "stale", answer{Text: "y"}, -time.Second))
	require.NoError(t, c.Set(ctx, "fresh", answer{Text: "z"}, time.Hour))

	var got answer
	assert.ErrorIs(t, c.Get(ctx, "old", &got), cache.ErrCacheMiss)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
}

func TestNew_Backends(t *testing.T) {
	ctx := context.Background()

	c, err := cache.New(ctx, config.CacheConfig{Enabled: false}, config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = cache.New(ctx, config.CacheConfig{Enabled: true, Backend: "memory"}, config.RedisConfig{})
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryCache{}, c)

	_, err = cache.New(ctx, config.CacheConfig{Enabled: true, Backend: "memcached"}, config.RedisConfig{})
	assert.Error(t, err)
}
