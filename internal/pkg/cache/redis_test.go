package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	c := NewRedisCache("localhost:0", "storefront")
	assert.Equal(t, "storefront:webhook:evt_1", c.GenerateKey("webhook", "evt_1"))
}

// Runs against a live server when STOREFRONT_TEST_REDIS_ADDR is set.
func TestRedisCache_Live(t *testing.T) {
	addr := os.Getenv("STOREFRONT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STOREFRONT_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c := NewRedisCache(addr, "storefront-test")
	t.Cleanup(func() { _ = Close(c) })
	require.NoError(t, Ping(ctx, c))

	key := c.GenerateKey("test", uuid.NewString())
	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, got, "miss is an empty string")

	ok, err := c.SetNX(ctx, key, "first", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.SetNX(ctx, key, "second", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	require.NoError(t, c.Delete(ctx, key))
	got, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, got)
}
