package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/chatshop/internal/domain"
	"github.com/Proton-105/chatshop/internal/jobs"
	"github.com/Proton-105/chatshop/internal/notify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, businessID int64, address, text string) error {
	return m.Called(ctx, businessID, address, text).Error(0)
}

func TestNotificationHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("sends the message", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", ctx, int64(3), "555", "hello").Return(nil).Once()

		task, err := jobs.NewNotificationTask(notify.Message{BusinessID: 3, Address: "555", Text: "hello"})
		require.NoError(t, err)

		require.NoError(t, NewNotificationHandler(sender, testLogger()).ProcessTask(ctx, task))
		sender.AssertExpectations(t)
	})

	t.Run("send failure is retried", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", ctx, int64(3), "555", "hello").Return(errors.New("network down"))

		task, err := jobs.NewNotificationTask(notify.Message{BusinessID: 3, Address: "555", Text: "hello"})
		require.NoError(t, err)

		err = NewNotificationHandler(sender, testLogger()).ProcessTask(ctx, task)
		require.Error(t, err)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("bad payload skips retry", func(t *testing.T) {
		sender := new(mockSender)
		task := asynq.NewTask(jobs.TaskTypeNotificationSend, []byte("{"))

		err := NewNotificationHandler(sender, testLogger()).ProcessTask(ctx, task)
		assert.ErrorIs(t, err, asynq.SkipRetry)
		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty address skips retry", func(t *testing.T) {
		sender := new(mockSender)
		task, err := jobs.NewNotificationTask(notify.Message{BusinessID: 3, Text: "hello"})
		require.NoError(t, err)

		assert.ErrorIs(t, NewNotificationHandler(sender, testLogger()).ProcessTask(ctx, task), asynq.SkipRetry)
	})
}

type staleOrders struct {
	orders []domain.Order
	minAge time.Duration
	err    error
}

func (s *staleOrders) StaleDepositOrders(_ context.Context, minAge time.Duration) ([]domain.Order, error) {
	s.minAge = minAge
	return s.orders, s.err
}

type recordingReminder struct {
	reminded []int64
	failFor  int64
}

func (r *recordingReminder) DepositReminder(_ context.Context, o *domain.Order) error {
	if o.ID == r.failFor {
		return errors.New("no recipient")
	}
	r.reminded = append(r.reminded, o.ID)
	return nil
}

func TestDepositReminderHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("reminds every order and tolerates failures", func(t *testing.T) {
		orders := &staleOrders{orders: []domain.Order{{ID: 1}, {ID: 2}, {ID: 3}}}
		reminder := &recordingReminder{failFor: 2}

		task, err := jobs.NewDepositReminderTask(48 * time.Hour)
		require.NoError(t, err)

		require.NoError(t, NewDepositReminderHandler(orders, reminder, testLogger()).ProcessTask(ctx, task))
		assert.Equal(t, 48*time.Hour, orders.minAge)
		assert.Equal(t, []int64{1, 3}, reminder.reminded)
	})

	t.Run("listing failure is returned", func(t *testing.T) {
		orders := &staleOrders{err: errors.New("db down")}

		task, err := jobs.NewDepositReminderTask(time.Hour)
		require.NoError(t, err)

		assert.Error(t, NewDepositReminderHandler(orders, &recordingReminder{}, testLogger()).ProcessTask(ctx, task))
	})
}
