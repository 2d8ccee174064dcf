package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/libreria-lumen/backoffice/internal/jobs"
)

// DefaultIdempotencyRetention is how long claimed sale keys are kept.
const DefaultIdempotencyRetention = 7 * 24 * time.Hour

// KeyPruner deletes idempotency keys older than a retention window.
type KeyPruner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanup prunes old idempotency keys.
type IdempotencyCleanup struct {
	Store     KeyPruner
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle executes the cleanup for an asynq task.
func (c *IdempotencyCleanup) Handle(ctx context.Context, _ *asynq.Task) error {
	if c == nil || c.Store == nil {
		return errors.New("idempotency cleanup: store not configured")
	}
	retention := c.Retention
	if retention <= 0 {
		retention = DefaultIdempotencyRetention
	}
	tracker := c.Metrics.Track(TaskIdempotencyCleanup)
	removed, err := c.Store.Cleanup(ctx, retention)
	if err != nil {
		return tracker.End(err)
	}
	c.Metrics.AddProcessed(TaskIdempotencyCleanup, int(removed))
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("idempotency keys pruned", slog.Int64("count", removed), slog.Duration("retention", retention))
	return tracker.End(nil)
}
