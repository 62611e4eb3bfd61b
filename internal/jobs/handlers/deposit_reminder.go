package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/chatshop/internal/domain"
	"github.com/Proton-105/chatshop/internal/jobs"
)

// StaleDeposits lists deposit orders still missing a receipt.
type StaleDeposits interface {
	StaleDepositOrders(ctx context.Context, minAge time.Duration) ([]domain.Order, error)
}

// Reminder messages a customer about one order.
type Reminder interface {
	DepositReminder(ctx context.Context, o *domain.Order) error
}

// DepositReminderHandler reminds customers to upload the receipt of their deposit orders.
type DepositReminderHandler struct {
	orders   StaleDeposits
	reminder Reminder
	log      *slog.Logger
}

// NewDepositReminderHandler creates a DepositReminderHandler.
func NewDepositReminderHandler(orders StaleDeposits, reminder Reminder, log *slog.Logger) *DepositReminderHandler {
	if log == nil {
		log = slog.Default()
	}
	return &DepositReminderHandler{orders: orders, reminder: reminder, log: log}
}

func (h *DepositReminderHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.DepositReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode deposit reminder: %v: %w", err, asynq.SkipRetry)
	}

	orders, err := h.orders.StaleDepositOrders(ctx, payload.MinAge)
	if err != nil {
		return fmt.Errorf("list stale deposit orders: %w", err)
	}

	sent := 0
	for i := range orders {
		if err := h.reminder.DepositReminder(ctx, &orders[i]); err != nil {
			h.log.WarnContext(ctx, "failed to remind customer of deposit",
				slog.Int64("order_id", orders[i].ID),
				slog.Any("error", err),
			)
			continue
		}
		sent++
	}

	h.log.InfoContext(ctx, "deposit reminders sent", slog.Int("orders", len(orders)), slog.Int("sent", sent))
	return nil
}
