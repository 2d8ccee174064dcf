package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReservationsExpire sweeps overdue reservations into EXPIRED.
	TaskReservationsExpire = "reservations:expire"
	// TaskIdempotencyCleanup prunes expired sale idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// ExpirePayload carries scheduling metadata for a sweep.
type ExpirePayload struct {
	RequestedAt time.Time `json:"requested_at"`
	Source      string    `json:"source"`
}

// NewReservationsExpireTask constructs the sweep task. source tags who asked
// for it ("cron", "cli").
func NewReservationsExpireTask(source string, at time.Time) (*asynq.Task, error) {
	if source == "" {
		source = "cron"
	}
	body, err := json.Marshal(ExpirePayload{RequestedAt: at.UTC(), Source: source})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReservationsExpire, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// NewIdempotencyCleanupTask constructs the key pruning task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}

// KnownTasks lists the task types the worker serves.
func KnownTasks() []string {
	return []string{TaskReservationsExpire, TaskIdempotencyCleanup}
}
