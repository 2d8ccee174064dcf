package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/libreria-lumen/backoffice/internal/app"
	"github.com/libreria-lumen/backoffice/internal/audit"
	audithttp "github.com/libreria-lumen/backoffice/internal/audit/http"
	"github.com/libreria-lumen/backoffice/internal/auth"
	"github.com/libreria-lumen/backoffice/internal/catalog"
	"github.com/libreria-lumen/backoffice/internal/customers"
	"github.com/libreria-lumen/backoffice/internal/inventory"
	"github.com/libreria-lumen/backoffice/internal/observability"
	"github.com/libreria-lumen/backoffice/internal/platform/cache"
	"github.com/libreria-lumen/backoffice/internal/platform/clock"
	"github.com/libreria-lumen/backoffice/internal/platform/db"
	"github.com/libreria-lumen/backoffice/internal/platform/httpx"
	"github.com/libreria-lumen/backoffice/internal/rbac"
	"github.com/libreria-lumen/backoffice/internal/reports"
	"github.com/libreria-lumen/backoffice/internal/reservations"
	"github.com/libreria-lumen/backoffice/internal/sales"
	"github.com/libreria-lumen/backoffice/internal/shared"
	"github.com/libreria-lumen/backoffice/internal/users"
	"github.com/libreria-lumen/backoffice/jobs"
)

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	clk := clock.NewSystem()
	auditor := shared.NewAuditor(shared.NewAuditLogger(dbpool), cfg.AuditStrict, logger)
	metrics := observability.NewMetrics()

	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), auditor, clk, logger)
	catalogService := catalog.NewService(catalog.NewRepository(dbpool), inventoryService, auditor, clk)
	customerService := customers.NewService(customers.NewRepository(dbpool), auditor, clk)
	userService := users.NewService(users.NewRepository(dbpool), auditor, clk, logger)

	if created, err := userService.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
		logger.Error("bootstrap admin", slog.Any("error", err))
	} else if created {
		logger.Info("bootstrap admin provisioned", slog.String("email", cfg.BootstrapAdminEmail))
	}

	reportService := reports.NewService(reports.NewRepository(dbpool), reports.NewCache(redisClient, cfg.ReportCacheTTL), logger)
	salesService := sales.NewService(sales.Deps{
		Repo:        sales.NewRepository(dbpool),
		Products:    catalogService,
		Customers:   customerService,
		Cashiers:    userService,
		Ledger:      inventoryService,
		Audit:       auditor,
		Idempotency: shared.NewIdempotencyStore(dbpool),
		Hooks:       sales.Hooks{SaleCompleted: chainSaleHooks(metrics.ObserveSale, reportService.OnSaleCompleted)},
		Clock:       clk,
		Logger:      logger,
	})
	reservationService := reservations.NewService(reservations.Deps{
		Repo:      reservations.NewRepository(dbpool),
		Products:  catalogService,
		Customers: customerService,
		Ledger:    inventoryService,
		Sales:     salesService,
		Audit:     auditor,
		Clock:     clk,
		Logger:    logger,
	})

	sessionManager := shared.NewSessionManager(redisClient, cfg.TokenTTL)
	authService := auth.NewService(userService, sessionManager, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	validate := httpx.NewValidator()
	rbacMiddleware := rbac.Middleware{Logger: logger}

	router := app.NewRouter(app.RouterParams{
		Logger:   logger,
		Config:   cfg,
		Sessions: sessionManager,
		Metrics:  metrics,
		Checks: map[string]app.HealthCheck{
			"postgres": dbpool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
		AuthHandler:         auth.NewHandler(logger, authService, validate, rbacMiddleware),
		UsersHandler:        users.NewHandler(logger, userService, validate, rbacMiddleware),
		CatalogHandler:      catalog.NewHandler(logger, catalogService, validate, rbacMiddleware),
		CustomersHandler:    customers.NewHandler(logger, customerService, validate, rbacMiddleware),
		InventoryHandler:    inventory.NewHandler(logger, inventoryService, validate, rbacMiddleware),
		SalesHandler:        sales.NewHandler(logger, salesService, validate, rbacMiddleware),
		ReservationsHandler: reservations.NewHandler(logger, reservationService, validate, rbacMiddleware),
		ReportsHandler:      reports.NewHandler(logger, reportService, rbacMiddleware),
		AuditHandler:        audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), rbacMiddleware),
		JobHandler:          jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}

// chainSaleHooks runs every hook and joins their errors.
func chainSaleHooks(hooks ...func(context.Context, sales.Sale) error) func(context.Context, sales.Sale) error {
	return func(ctx context.Context, sale sales.Sale) error {
		var errs []error
		for _, h := range hooks {
			if err := h(ctx, sale); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
