package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"
)

const defaultUserKey = "error_generic"

type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	if log == nil {
		log = slog.Default()
	}

	return &Handler{
		log:           log,
		sentryEnabled: sentryEnabled,
	}
}

// Handle logs err, reports serious ones to Sentry and returns the template key to show the
// customer and whether the operation may be retried.
func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		level := slog.LevelError
		if appErr.Severity == SeverityLow {
			level = slog.LevelWarn
		}

		h.log.Log(ctx, level, "application error",
			slog.String("code", appErr.Code),
			slog.String("message", appErr.Error()),
			slog.String("severity", string(appErr.Severity)),
			slog.Bool("retryable", appErr.Retryable),
		)

		if h.sentryEnabled && (appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh) {
			h.sendToSentry(ctx, err)
		}

		userKey := appErr.UserKey
		if userKey == "" {
			userKey = defaultUserKey
		}

		return userKey, appErr.Retryable
	}

	h.log.ErrorContext(ctx, "unknown error",
		slog.String("message", err.Error()),
		slog.String("severity", string(SeverityHigh)),
	)

	if h.sentryEnabled {
		h.sendToSentry(ctx, err)
	}

	return defaultUserKey, false
}

func (h *Handler) sendToSentry(ctx context.Context, err error) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		var appErr *AppError
		if errors.As(err, &appErr) && appErr != nil {
			if appErr.Code != "" {
				scope.SetTag("code", appErr.Code)
			}

			if appErr.Severity != "" {
				scope.SetTag("severity", string(appErr.Severity))
			}
		}

		hub.CaptureException(err)
	})
}
