package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/chatshop/internal/bot/handlers"
	apperrors "github.com/Proton-105/chatshop/internal/errors"
)

// RecoveryMiddleware turns a panic into a reported error so one bad update cannot stop the poller.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperrors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
					if errHandler != nil {
						errHandler.Handle(context.Background(), apperrors.NewStateError(fmt.Sprintf("panic recovered: %v", r)))
					}
					err = nil
				}
			}()

			return next(c)
		}
	}
}

// LoggingMiddleware logs each update with its chat and handling time.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			start := time.Now()

			var chatID int64
			if c.Chat() != nil {
				chatID = c.Chat().ID
			}

			err := next(c)

			level := slog.LevelInfo
			if err != nil {
				level = slog.LevelWarn
			}
			log.Log(context.Background(), level, "handled update",
				slog.Int("update_id", c.Update().ID),
				slog.Int64("chat_id", chatID),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)
			return err
		}
	}
}
