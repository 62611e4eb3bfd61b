package middleware

import (
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/chatshop/internal/bot/handlers"
	"github.com/Proton-105/chatshop/pkg/metrics"
)

// Metrics reports handling time and outcome of every update per business account.
func Metrics(businessID int64) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			start := time.Now()
			err := next(c)

			status := "ok"
			if err != nil {
				status = "error"
			}
			metrics.RecordUpdate(businessID, updateKind(c), status, time.Since(start))

			return err
		}
	}
}

func updateKind(c telebot.Context) string {
	msg := c.Message()
	switch {
	case msg == nil:
		return "other"
	case msg.Photo != nil:
		return "photo"
	case msg.Document != nil:
		return "document"
	default:
		return "text"
	}
}
