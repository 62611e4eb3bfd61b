package middleware

import (
	"context"
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/chatshop/internal/bot/handlers"
	"github.com/Proton-105/chatshop/internal/ratelimit"
)

// Notice returns the text sent to a conversation that hit the limit.
type Notice func(ctx context.Context, address string) string

// RateLimit answers with notice instead of handling updates over the per-conversation limit.
func RateLimit(guard *ratelimit.Guard, businessID int64, notice Notice, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			if guard == nil || c.Chat() == nil {
				return next(c)
			}

			ctx := context.Background()
			address := strconv.FormatInt(c.Chat().ID, 10)
			if guard.Allow(ctx, businessID, address) {
				return next(c)
			}

			log.Warn("rate limit exceeded", slog.Int64("business_id", businessID), slog.String("phone", address))
			if notice == nil {
				return nil
			}
			return c.Send(notice(ctx, address))
		}
	}
}
