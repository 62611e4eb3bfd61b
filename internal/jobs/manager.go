package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/chatshop/internal/notify"
)

// Manager describes the minimal queue operations needed by the application.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	// Dispatch queues msg for delivery by the worker.
	Dispatch(ctx context.Context, msg notify.Message) error
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

var _ notify.Dispatcher = (*manager)(nil)

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		client: asynq.NewClient(redisOpt),
		log:    log,
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return m.client.EnqueueContext(ctx, task, opts...)
}

func (m *manager) Dispatch(ctx context.Context, msg notify.Message) error {
	task, err := NewNotificationTask(msg)
	if err != nil {
		return err
	}

	info, err := m.Enqueue(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}

	m.log.DebugContext(ctx, "notification enqueued",
		slog.String("task_id", info.ID),
		slog.Int64("business_id", msg.BusinessID),
	)
	return nil
}

func (m *manager) Close() error {
	return m.client.Close()
}
