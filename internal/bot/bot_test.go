package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/chatshop/internal/bot/handlers"
	"github.com/Proton-105/chatshop/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRouterWrapOrder(t *testing.T) {
	r := NewRouter(testLogger())

	var calls []string
	mw := func(name string) handlers.Middleware {
		return func(next handlers.Handler) handlers.Handler {
			return func(c telebot.Context) error {
				calls = append(calls, name)
				return next(c)
			}
		}
	}
	r.Use(mw("outer"))
	r.Use(mw("inner"))

	h := r.Wrap(func(telebot.Context) error {
		calls = append(calls, "handler")
		return nil
	})
	require.NoError(t, h(nil))
	assert.Equal(t, []string{"outer", "inner", "handler"}, calls)
}

func TestRecoveryMiddlewareSwallowsPanic(t *testing.T) {
	h := RecoveryMiddleware(testLogger(), nil)(func(telebot.Context) error {
		panic("boom")
	})

	assert.NoError(t, h(nil))
}

func TestSendRejectsNonNumericAddress(t *testing.T) {
	b, err := New(config.BotConfig{BusinessID: 7, Token: "test"}, Deps{}, testLogger(), true)
	require.NoError(t, err)

	err = b.Send(context.Background(), "not-a-chat", "hello")
	assert.True(t, errors.Is(err, ErrInvalidAddress))
}

func TestDispatcherUnknownBusiness(t *testing.T) {
	b, err := New(config.BotConfig{BusinessID: 7, Token: "test"}, Deps{}, testLogger(), true)
	require.NoError(t, err)

	d := NewDispatcher(b)
	assert.Error(t, d.Send(context.Background(), 8, "1", "hello"))
	assert.ErrorIs(t, d.Send(context.Background(), 7, "x", "hello"), ErrInvalidAddress)
}
