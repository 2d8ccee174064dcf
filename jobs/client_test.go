package jobs_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libreria-lumen/backoffice/jobs"
)

type recordingEnqueuer struct {
	tasks  []*asynq.Task
	closed bool
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: task.Type(), Queue: jobs.QueueDefault, Type: task.Type()}, nil
}

func (r *recordingEnqueuer) Close() error {
	r.closed = true
	return nil
}

func TestClientEnqueuesKnownTasks(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	enq := &recordingEnqueuer{}
	client := jobs.NewClientWith(enq).WithClock(func() time.Time { return at })

	info, err := client.Enqueue(context.Background(), jobs.TaskReservationsExpire, "cli")
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskReservationsExpire, info.Type)

	_, err = client.Enqueue(context.Background(), jobs.TaskIdempotencyCleanup, "cli")
	require.NoError(t, err)

	_, err = client.Enqueue(context.Background(), "ledger:rebuild", "cli")
	assert.ErrorContains(t, err, "unsupported job")

	require.Len(t, enq.tasks, 2)
	var payload jobs.ExpirePayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, "cli", payload.Source)
	assert.True(t, payload.RequestedAt.Equal(at))
	assert.Equal(t, jobs.TaskIdempotencyCleanup, enq.tasks[1].Type())

	require.NoError(t, client.Close())
	assert.True(t, enq.closed)
}
