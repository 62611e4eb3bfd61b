package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/chatshop/internal/notify"
)

const (
	TaskTypeNotificationSend = "notification:send"
	TaskTypeDepositReminder  = "orders:deposit_reminder"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Queues is the priority map the worker serves.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

const notificationMaxRetry = 5

// DepositReminderPayload selects deposit orders older than MinAge.
type DepositReminderPayload struct {
	MinAge time.Duration `json:"min_age"`
}

// NewNotificationTask wraps one outbound message.
func NewNotificationTask(msg notify.Message) (*asynq.Task, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}

	return asynq.NewTask(TaskTypeNotificationSend, payload,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(notificationMaxRetry),
	), nil
}

// NewDepositReminderTask builds the periodic reminder sweep.
func NewDepositReminderTask(minAge time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(DepositReminderPayload{MinAge: minAge})
	if err != nil {
		return nil, fmt.Errorf("marshal deposit reminder: %w", err)
	}

	return asynq.NewTask(TaskTypeDepositReminder, payload, asynq.Queue(QueueLow), asynq.MaxRetry(1)), nil
}
