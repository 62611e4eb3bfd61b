package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return Wrap(rdb), mr
}

func TestLockIsExclusive(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	release, err := client.Lock(ctx, "order:lock:1", time.Second, 0)
	require.NoError(t, err)

	_, err = client.Lock(ctx, "order:lock:1", time.Second, 0)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, release(ctx))

	again, err := client.Lock(ctx, "order:lock:1", time.Second, 0)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestReleaseKeepsForeignLock(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	release, err := client.Lock(ctx, "order:lock:2", time.Second, 0)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("order:lock:2", "someone-else"))

	require.NoError(t, release(ctx))

	value, err := mr.Get("order:lock:2")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", value)
}

func TestMetricsClientForwards(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()
	m := NewMetricsClient(client)

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	require.NoError(t, m.Delete(ctx, "k"))
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, goredis.Nil)
}
