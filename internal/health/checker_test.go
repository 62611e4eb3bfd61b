package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestCheckerReport(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewChecker(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.AddCheck("redis", Redis(client))
	c.AddCheck("broker", CheckFunc(func(context.Context) error { return errors.New("connection closed") }))
	c.AddCheck("postgres", SQL(nil))

	report := c.Check(context.Background())

	assert.False(t, report.Healthy)
	assert.Equal(t, "OK", report.Components["redis"])
	assert.Equal(t, "connection closed", report.Components["broker"])
	assert.Equal(t, ErrUnavailable.Error(), report.Components["postgres"])
}

func TestCheckerHealthyWhenAllPass(t *testing.T) {
	c := NewChecker(nil)
	c.AddCheck("noop", CheckFunc(func(context.Context) error { return nil }))

	assert.True(t, c.Check(context.Background()).Healthy)
}
