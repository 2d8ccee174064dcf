package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/libreria-lumen/backoffice/jobs"
)

// Enqueuer is the asynq.Client surface the CLI uses.
type Enqueuer = jobs.Enqueuer

// Inspector is the asynq.Inspector surface the CLI uses.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: jobs.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// NewJobsCLIWith builds the helpers over explicit client and inspector.
func NewJobsCLIWith(client Enqueuer, inspector Inspector) *JobsCLI {
	return &JobsCLI{client: jobs.NewClientWith(client), inspector: inspector}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a supported job by name with default payload.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	return c.client.Enqueue(ctx, name, "cli")
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Paused    bool   `json:"paused"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
		stats.Paused = info.Paused
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

// TriggerOptions defines flags for `lumen jobs trigger`.
type TriggerOptions struct {
	Name   string
	Stdout io.Writer
	Stderr io.Writer
}

// TriggerCommand enqueues a job and prints its task id.
func (c *JobsCLI) TriggerCommand(ctx context.Context, opts TriggerOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	if opts.Name == "" {
		_, _ = fmt.Fprintf(stderr, "jobs trigger: job name required (one of %v)\n", jobs.KnownTasks())
		return 2
	}
	info, err := c.Trigger(ctx, opts.Name)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs trigger: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "enqueued %s as %s on queue %s\n", opts.Name, info.ID, info.Queue)
	return 0
}

// InspectOptions defines flags for `lumen jobs inspect`.
type InspectOptions struct {
	JSONOutput bool
	Scheduled  int
	Stdout     io.Writer
	Stderr     io.Writer
}

// InspectCommand prints queue statistics and upcoming scheduled tasks.
func (c *JobsCLI) InspectCommand(ctx context.Context, opts InspectOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	stats, err := c.InspectQueue(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs inspect: %v\n", err)
		return 1
	}
	scheduled, err := c.ListScheduled(ctx, opts.Scheduled)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs inspect: list scheduled: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		type scheduledTask struct {
			ID   string    `json:"id"`
			Type string    `json:"type"`
			At   time.Time `json:"next_process_at"`
		}
		out := struct {
			QueueStats
			ScheduledTasks []scheduledTask `json:"scheduled_tasks"`
		}{QueueStats: stats, ScheduledTasks: make([]scheduledTask, 0, len(scheduled))}
		for _, t := range scheduled {
			out.ScheduledTasks = append(out.ScheduledTasks, scheduledTask{ID: t.ID, Type: t.Type, At: t.NextProcessAt})
		}
		if err := json.NewEncoder(stdout).Encode(out); err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs inspect: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(stdout, "queue %s: pending=%d active=%d scheduled=%d retry=%d archived=%d paused=%t\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived, stats.Paused)
	for _, t := range scheduled {
		_, _ = fmt.Fprintf(stdout, " - %s %s at %s\n", t.ID, t.Type, t.NextProcessAt.Format(time.RFC3339))
	}
	return 0
}

func writers(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}
