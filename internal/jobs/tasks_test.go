package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/chatshop/internal/notify"
)

func TestNewNotificationTask(t *testing.T) {
	task, err := NewNotificationTask(notify.Message{BusinessID: 1, Address: "42", Text: "paid"})
	require.NoError(t, err)

	assert.Equal(t, TaskTypeNotificationSend, task.Type())
	assert.JSONEq(t, `{"business_id":1,"address":"42","text":"paid"}`, string(task.Payload()))
}

func TestQueuesPrioritiseNotifications(t *testing.T) {
	assert.Greater(t, Queues[QueueCritical], Queues[QueueLow])
}
