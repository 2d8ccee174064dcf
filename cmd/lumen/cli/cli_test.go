package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/libreria-lumen/backoffice/internal/testing/fixture"
	"github.com/libreria-lumen/backoffice/jobs"
)

type stubEnqueuer struct {
	tasks []*asynq.Task
}

func (s *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Queue: jobs.QueueDefault, Type: task.Type()}, nil
}

func (s *stubEnqueuer) Close() error { return nil }

type stubInspector struct {
	info      *asynq.QueueInfo
	scheduled []*asynq.TaskInfo
	err       error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func (s stubInspector) ListScheduledTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return s.scheduled, nil
}

func (s stubInspector) Close() error { return nil }

func TestTriggerCommandEnqueuesSweep(t *testing.T) {
	enq := &stubEnqueuer{}
	c := NewJobsCLIWith(enq, stubInspector{})
	c.client.WithClock(func() time.Time { return fixture.Epoch })

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := c.TriggerCommand(context.Background(), TriggerOptions{Name: jobs.TaskReservationsExpire, Stdout: stdout, Stderr: stderr})
	require.Zero(t, code, stderr.String())
	require.Contains(t, stdout.String(), "task-1")
	require.Len(t, enq.tasks, 1)

	var payload jobs.ExpirePayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, "cli", payload.Source)
	require.True(t, payload.RequestedAt.Equal(fixture.Epoch))
}

func TestTriggerCommandRejectsUnknownJob(t *testing.T) {
	c := NewJobsCLIWith(&stubEnqueuer{}, stubInspector{})
	stderr := new(bytes.Buffer)
	require.Equal(t, 1, c.TriggerCommand(context.Background(), TriggerOptions{Name: "ledger:rebuild", Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "unsupported job")

	stderr.Reset()
	require.Equal(t, 2, c.TriggerCommand(context.Background(), TriggerOptions{Stdout: new(bytes.Buffer), Stderr: stderr}))
}

func TestInspectCommandJSON(t *testing.T) {
	c := NewJobsCLIWith(&stubEnqueuer{}, stubInspector{
		info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 2, Retry: 1},
		scheduled: []*asynq.TaskInfo{
			{ID: "s1", Type: jobs.TaskReservationsExpire, NextProcessAt: fixture.Epoch},
		},
	})
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	require.Zero(t, c.InspectCommand(context.Background(), InspectOptions{JSONOutput: true, Stdout: stdout, Stderr: stderr}))
	require.Empty(t, stderr.String())

	var out struct {
		Pending        int `json:"pending"`
		Retry          int `json:"retry"`
		ScheduledTasks []struct {
			Type string `json:"type"`
		} `json:"scheduled_tasks"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	require.Equal(t, 2, out.Pending)
	require.Equal(t, 1, out.Retry)
	require.Len(t, out.ScheduledTasks, 1)
	require.Equal(t, jobs.TaskReservationsExpire, out.ScheduledTasks[0].Type)
}

func TestInspectCommandReportsRedisFailure(t *testing.T) {
	c := NewJobsCLIWith(&stubEnqueuer{}, stubInspector{err: errors.New("dial tcp: connection refused")})
	stderr := new(bytes.Buffer)
	require.Equal(t, 1, c.InspectCommand(context.Background(), InspectOptions{Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "connection refused")
}

func TestBootstrapCommand(t *testing.T) {
	env := fixture.New(t)
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	// The fixture already seeds staff accounts, so nothing is created.
	code := BootstrapCommand(context.Background(), env.Users, BootstrapOptions{
		Email: "root@lumen.test", Password: "change-me-now", Stdout: stdout, Stderr: stderr,
	})
	require.Zero(t, code, stderr.String())
	require.Contains(t, stdout.String(), "nothing to do")

	require.Equal(t, 2, BootstrapCommand(context.Background(), env.Users, BootstrapOptions{Stdout: stdout, Stderr: stderr}))
}
