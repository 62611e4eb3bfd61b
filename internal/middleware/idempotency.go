// Package middleware holds the telebot middlewares shared by every business bot and the HTTP
// access log of the ops server.
package middleware

import (
	"context"
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/chatshop/internal/bot/handlers"
	"github.com/Proton-105/chatshop/internal/idempotency"
)

// Idempotency drops updates of businessID that were already handled.
func Idempotency(manager idempotency.Manager, businessID int64, log *slog.Logger) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler { return next }
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			updateID := c.Update().ID
			if updateID == 0 {
				return next(c)
			}

			key := idempotency.UpdateKey(businessID, updateID)
			err := manager.Execute(context.Background(), key, func(context.Context) error {
				return next(c)
			})
			switch {
			case errors.Is(err, idempotency.ErrDuplicate), errors.Is(err, idempotency.ErrRequestInProgress):
				log.Debug("skipping repeated update", slog.String("key", key))
				return nil
			default:
				return err
			}
		}
	}
}
