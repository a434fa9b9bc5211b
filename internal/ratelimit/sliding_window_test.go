package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, cfg Config) (*SlidingWindow, *miniredis.Miniredis, *time.Time) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	limiter := NewSlidingWindow(client, cfg).WithClock(func() time.Time { return now })
	return limiter, mr, &now
}

func TestSlidingWindow_Allow(t *testing.T) {
	limiter, mr, now := newTestLimiter(t, Config{Limit: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := limiter.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
		*now = now.Add(time.Second)
	}

	allowed, retryAfter, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 57*time.Second, retryAfter)

	// Other users have their own window.
	allowed, _, err = limiter.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, allowed)

	assert.True(t, mr.Exists("ratelimit:web-auth:u1"))
}

func TestSlidingWindow_WindowSlides(t *testing.T) {
	limiter, _, now := newTestLimiter(t, Config{Limit: 1, Window: time.Minute})
	ctx := context.Background()

	allowed, _, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	require.False(t, allowed)

	*now = now.Add(61 * time.Second)

	allowed, _, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestSlidingWindow_RedisDown(t *testing.T) {
	limiter, mr, _ := newTestLimiter(t, Config{Limit: 1, Window: time.Minute})
	mr.Close()

	_, _, err := limiter.Allow(context.Background(), "u1")
	assert.Error(t, err)
}
