package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	defaultReminderCron   = "0 */6 * * *"
	defaultReminderMinAge = 24 * time.Hour
)

// Scheduler enqueues the periodic tasks.
type Scheduler interface {
	RegisterTasks() error
	Run(ctx context.Context) error
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	cron           string
	minAge         time.Duration
	log            *slog.Logger
}

// NewScheduler registers the reminder sweep on cron, falling back to every six hours.
func NewScheduler(redisOpt asynq.RedisConnOpt, cron string, minAge time.Duration, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if cron == "" {
		cron = defaultReminderCron
	}
	if minAge <= 0 {
		minAge = defaultReminderMinAge
	}

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, nil),
		cron:           cron,
		minAge:         minAge,
		log:            log,
	}
}

func (s *scheduler) RegisterTasks() error {
	task, err := NewDepositReminderTask(s.minAge)
	if err != nil {
		return err
	}

	if _, err := s.asynqScheduler.Register(s.cron, task); err != nil {
		return err
	}

	s.log.InfoContext(context.Background(), "scheduler: registered deposit reminder task", slog.String("cron", s.cron))
	return nil
}

// Run enqueues periodic tasks until ctx is cancelled.
func (s *scheduler) Run(ctx context.Context) error {
	s.log.InfoContext(ctx, "scheduler: starting")
	if err := s.asynqScheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()
	s.log.Info("scheduler: shutting down")
	s.asynqScheduler.Shutdown()
	return nil
}
