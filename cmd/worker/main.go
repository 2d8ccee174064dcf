package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/libreria-lumen/backoffice/internal/app"
	"github.com/libreria-lumen/backoffice/internal/catalog"
	"github.com/libreria-lumen/backoffice/internal/customers"
	"github.com/libreria-lumen/backoffice/internal/inventory"
	jobmetrics "github.com/libreria-lumen/backoffice/internal/jobs"
	"github.com/libreria-lumen/backoffice/internal/platform/clock"
	"github.com/libreria-lumen/backoffice/internal/platform/db"
	"github.com/libreria-lumen/backoffice/internal/reservations"
	"github.com/libreria-lumen/backoffice/internal/shared"
	"github.com/libreria-lumen/backoffice/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	clk := clock.NewSystem()
	auditor := shared.NewAuditor(shared.NewAuditLogger(pool), cfg.AuditStrict, logger)
	inventoryService := inventory.NewService(inventory.NewRepository(pool), auditor, clk, logger)
	// Expiry only touches reservation rows; Sales is left unset because the
	// sweeper never completes a pickup.
	reservationService := reservations.NewService(reservations.Deps{
		Repo:      reservations.NewRepository(pool),
		Products:  catalog.NewService(catalog.NewRepository(pool), inventoryService, auditor, clk),
		Customers: customers.NewService(customers.NewRepository(pool), auditor, clk),
		Ledger:    inventoryService,
		Audit:     auditor,
		Clock:     clk,
		Logger:    logger,
	})

	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)
	sweeper := jobs.NewExpirationSweeper(reservationService, logger, metrics)
	cleanup := &jobs.IdempotencyCleanup{
		Store:   shared.NewIdempotencyStore(pool),
		Logger:  logger,
		Metrics: metrics,
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: promhttp.Handler(), ReadTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics listener", slog.Any("error", err))
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}

	// One sweep at start so reservations that lapsed while the worker was
	// down expire before the first tick.
	if _, err := sweeper.RunOnce(ctx); err != nil {
		logger.Warn("initial sweep", slog.Any("error", err))
	}

	sweepTask, err := jobs.NewReservationsExpireTask("cron", time.Now())
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReservationsExpire, Handler: sweeper.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanup.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SweepSpec(), Task: sweepTask, Options: []asynq.Option{asynq.Unique(cfg.SweepInterval)}},
			{Spec: "30 3 * * *", Task: jobs.NewIdempotencyCleanupTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
