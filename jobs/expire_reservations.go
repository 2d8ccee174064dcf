package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/libreria-lumen/backoffice/internal/jobs"
)

// Expirer is the reservation operation the sweeper drives.
type Expirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// ExpirationSweeper moves overdue reservations to EXPIRED.
type ExpirationSweeper struct {
	Service Expirer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewExpirationSweeper constructs the sweeper.
func NewExpirationSweeper(service Expirer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpirationSweeper {
	return &ExpirationSweeper{Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes a sweep for an asynq task.
func (s *ExpirationSweeper) Handle(ctx context.Context, task *asynq.Task) error {
	var payload ExpirePayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	s.log().Debug("sweep requested", slog.String("source", payload.Source))
	_, err := s.RunOnce(ctx)
	return err
}

// RunOnce performs one sweep and returns how many reservations expired.
func (s *ExpirationSweeper) RunOnce(ctx context.Context) (int, error) {
	if s == nil || s.Service == nil {
		return 0, errors.New("expiration sweeper: dependencies not configured")
	}
	tracker := s.Metrics.Track(TaskReservationsExpire)
	expired, err := s.Service.ExpireOverdue(ctx)
	if err != nil {
		s.log().Error("expire reservations", slog.Any("error", err))
		return 0, tracker.End(err)
	}
	s.Metrics.AddProcessed(TaskReservationsExpire, expired)
	if expired > 0 {
		s.log().Info("reservations expired", slog.Int("count", expired))
	} else {
		s.log().Debug("no overdue reservations")
	}
	return expired, tracker.End(nil)
}

func (s *ExpirationSweeper) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
