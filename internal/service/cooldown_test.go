package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCooldownWindow(t *testing.T) {
	clock := newFakeClock()
	cooldown := NewMemoryCooldown(time.Minute, clock)
	ctx := context.Background()

	ok, err := cooldown.Reserve(ctx, "user:verification:a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(30 * time.Second)
	ok, _ = cooldown.Reserve(ctx, "user:verification:a@example.com")
	assert.False(t, ok)

	ok, _ = cooldown.Reserve(ctx, "user:verification:b@example.com")
	assert.True(t, ok, "keys are throttled independently")

	clock.Advance(30 * time.Second)
	ok, _ = cooldown.Reserve(ctx, "user:verification:a@example.com")
	assert.True(t, ok)
}

func TestMemoryCooldownThrottlesNewKeyDuringCleanup(t *testing.T) {
	clock := newFakeClock()
	cooldown := NewMemoryCooldown(time.Minute, clock)
	ctx := context.Background()

	ok, _ := cooldown.Reserve(ctx, "stale")
	require.True(t, ok)
	clock.Advance(5 * time.Minute)

	ok, _ = cooldown.Reserve(ctx, "fresh")
	require.True(t, ok)
	ok, _ = cooldown.Reserve(ctx, "fresh")
	assert.False(t, ok, "a second reserve right after the first is throttled")

	cooldown.mutex.Lock()
	_, staleKept := cooldown.entries["stale"]
	cooldown.mutex.Unlock()
	assert.False(t, staleKept, "idle keys are dropped")

	clock.Advance(30 * time.Second)
	ok, _ = cooldown.Reserve(ctx, "fresh")
	assert.False(t, ok)
}

func TestMemoryCooldownRealClock(t *testing.T) {
	cooldown := NewMemoryCooldown(time.Minute, nil)
	ok, _ := cooldown.Reserve(context.Background(), "k")
	require.True(t, ok)
	ok, _ = cooldown.Reserve(context.Background(), "k")
	assert.False(t, ok)
}

func TestMemoryCooldownRelease(t *testing.T) {
	clock := newFakeClock()
	cooldown := NewMemoryCooldown(time.Minute, clock)
	ctx := context.Background()

	ok, _ := cooldown.Reserve(ctx, "k")
	require.True(t, ok)
	clock.Advance(time.Second)
	require.NoError(t, cooldown.Release(ctx, "k"))

	ok, _ = cooldown.Reserve(ctx, "k")
	assert.True(t, ok)
}

func TestMemoryCooldownDisabled(t *testing.T) {
	cooldown := NewMemoryCooldown(0, newFakeClock())
	for i := 0; i < 3; i++ {
		ok, err := cooldown.Reserve(context.Background(), "k")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestRedisCooldown(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	cooldown := NewRedisCooldown(client, time.Minute)
	cooldown.prefix = "fitzone:test:" + t.Name() + ":"
	key := "user:reset:a@example.com"
	t.Cleanup(func() { _ = cooldown.Release(ctx, key) })

	ok, err := cooldown.Reserve(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cooldown.Reserve(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cooldown.Release(ctx, key))
	ok, err = cooldown.Reserve(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}
