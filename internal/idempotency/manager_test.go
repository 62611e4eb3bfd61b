package idempotency

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
)

func newTestManager(t *testing.T) (Manager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(NewRedisStore(client, log), time.Hour, log), mr
}

func TestExecuteRunsOnce(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()
	key := UpdateKey(7, 42)

	calls := 0
	op := func(context.Context) error { calls++; return nil }

	require.NoError(t, m.Execute(ctx, key, op))
	assert.ErrorIs(t, m.Execute(ctx, key, op), ErrDuplicate)
	assert.Equal(t, 1, calls)

	ttl := mr.TTL("idempotency:" + key)
	assert.Equal(t, time.Hour, ttl)
}

func TestExecuteReleasesOnFailure(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	key := UpdateKey(7, 43)

	boom := errors.New("boom")
	require.ErrorIs(t, m.Execute(ctx, key, func(context.Context) error { return boom }), boom)

	calls := 0
	require.NoError(t, m.Execute(ctx, key, func(context.Context) error { calls++; return nil }))
	assert.Equal(t, 1, calls)
}

func TestExecuteReportsInProgress(t *testing.T) {
	m, mr := newTestManager(t)
	key := UpdateKey(7, 44)
	require.NoError(t, mr.Set("idempotency:"+key, StatusProcessing))

	err := m.Execute(context.Background(), key, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrRequestInProgress)
}

func TestUpdateKeyIsPerBusiness(t *testing.T) {
	assert.NotEqual(t, UpdateKey(1, 10), UpdateKey(2, 10))
}
