// Package handlers holds the asynq task handlers.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/chatshop/internal/notify"
)

// Sender delivers text to a conversation address of a business.
type Sender interface {
	Send(ctx context.Context, businessID int64, address, text string) error
}

// NotificationHandler delivers queued notify.Message tasks.
type NotificationHandler struct {
	sender Sender
	log    *slog.Logger
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(sender Sender, log *slog.Logger) *NotificationHandler {
	if log == nil {
		log = slog.Default()
	}
	return &NotificationHandler{sender: sender, log: log}
}

func (h *NotificationHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var msg notify.Message
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		h.log.ErrorContext(ctx, "notification: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("decode notification: %v: %w", err, asynq.SkipRetry)
	}
	if msg.Address == "" || msg.Text == "" {
		return fmt.Errorf("notification for business %d has no address or text: %w", msg.BusinessID, asynq.SkipRetry)
	}

	if err := h.sender.Send(ctx, msg.BusinessID, msg.Address, msg.Text); err != nil {
		h.log.WarnContext(ctx, "failed to send notification",
			slog.Int64("business_id", msg.BusinessID),
			slog.String("phone", msg.Address),
			slog.Any("error", err),
		)
		return fmt.Errorf("send notification: %w", err)
	}

	h.log.DebugContext(ctx, "notification sent", slog.Int64("business_id", msg.BusinessID))
	return nil
}
