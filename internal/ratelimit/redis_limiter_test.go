package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/chatshop/pkg/config"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLimiter_AllowsWithinLimit(t *testing.T) {
	limiter := NewRedisLimiter(setupTestRedis(t), testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, "test:allows", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 5-(i+1), result.Remaining)
	}
}

func TestRedisLimiter_BlocksWhenExceeded(t *testing.T) {
	limiter := NewRedisLimiter(setupTestRedis(t), testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "test:blocks", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := limiter.Check(ctx, "test:blocks", 2, time.Minute)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, result.Allowed)
}

func TestRedisLimiter_SlidingWindow(t *testing.T) {
	limiter := NewRedisLimiter(setupTestRedis(t), testLogger())
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := limiter.Check(ctx, "test:window", 2, time.Second)
		require.NoError(t, err)
	}
	_, err := limiter.Check(ctx, "test:window", 2, time.Second)
	require.ErrorIs(t, err, ErrLimitExceeded)

	now = now.Add(1100 * time.Millisecond)

	result, err := limiter.Check(ctx, "test:window", 2, time.Second)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestMemoryLimiterSweep(t *testing.T) {
	m := NewMemoryLimiter()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_, err := m.Check(context.Background(), "a", 1, time.Minute)
	require.NoError(t, err)
	_, err = m.Check(context.Background(), "a", 1, time.Minute)
	require.ErrorIs(t, err, ErrLimitExceeded)

	now = now.Add(10 * time.Minute)
	assert.Equal(t, 1, m.Sweep(5*time.Minute))
}

type failingLimiter struct{}

func (failingLimiter) Check(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, errors.New("redis down")
}

func TestGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("exempt address is never limited", func(t *testing.T) {
		g := NewGuard(config.RateLimitConfig{Limit: 1, Window: time.Minute, Exempt: []string{"ops"}}, nil, testLogger())
		for i := 0; i < 5; i++ {
			assert.True(t, g.Allow(ctx, 1, "ops"))
		}
	})

	t.Run("primary decides while healthy", func(t *testing.T) {
		g := NewGuard(config.RateLimitConfig{Limit: 2, Window: time.Minute}, NewRedisLimiter(setupTestRedis(t), testLogger()), testLogger())
		assert.True(t, g.Allow(ctx, 1, "94770000001"))
		assert.True(t, g.Allow(ctx, 1, "94770000001"))
		assert.False(t, g.Allow(ctx, 1, "94770000001"))
		assert.True(t, g.Allow(ctx, 2, "94770000001"), "limits are per business")
	})

	t.Run("falls back to a stricter memory window", func(t *testing.T) {
		g := NewGuard(config.RateLimitConfig{Limit: 4, Window: time.Minute}, failingLimiter{}, testLogger())
		assert.True(t, g.Allow(ctx, 1, "a"))
		assert.True(t, g.Allow(ctx, 1, "a"))
		assert.False(t, g.Allow(ctx, 1, "a"))
	})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
