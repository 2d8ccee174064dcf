package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/libreria-lumen/backoffice/cmd/lumen/cli"
	"github.com/libreria-lumen/backoffice/internal/app"
	"github.com/libreria-lumen/backoffice/internal/platform/clock"
	"github.com/libreria-lumen/backoffice/internal/platform/db"
	"github.com/libreria-lumen/backoffice/internal/shared"
	"github.com/libreria-lumen/backoffice/internal/users"
	"github.com/libreria-lumen/backoffice/migrations"
)

const usage = `usage: lumen <command> [flags]

commands:
  serve                         run the HTTP API (default)
  migrate                       apply database migrations
  jobs trigger <task>           enqueue a background task
  jobs inspect [-json]          show queue state and scheduled tasks
  bootstrap-admin [-email -password]
                                create the first admin when no user exists
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	command, args := "serve", os.Args[1:]
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		if err := serve(ctx, stop, cfg, logger); err != nil {
			logger.Error("serve", slog.Any("error", err))
			os.Exit(1)
		}
	case "migrate":
		if err := migrate(ctx, cfg, logger); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
	case "jobs":
		os.Exit(runJobs(ctx, cfg, args))
	case "bootstrap-admin":
		os.Exit(runBootstrap(ctx, cfg, logger, args))
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	applied, err := migrations.Apply(ctx, pool, logger)
	if err != nil {
		return err
	}
	logger.Info("migrations complete", slog.Int("applied", applied))
	return nil
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer func() { _ = jobsCLI.Close() }()

	switch args[0] {
	case "trigger":
		var name string
		if len(args) > 1 {
			name = args[1]
		}
		return jobsCLI.TriggerCommand(ctx, cli.TriggerOptions{Name: name})
	case "inspect":
		fs := flag.NewFlagSet("jobs inspect", flag.ContinueOnError)
		jsonOut := fs.Bool("json", false, "print JSON")
		scheduled := fs.Int("scheduled", 10, "number of scheduled tasks to list")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		return jobsCLI.InspectCommand(ctx, cli.InspectOptions{JSONOutput: *jsonOut, Scheduled: *scheduled})
	default:
		fmt.Fprintf(os.Stderr, "unknown jobs subcommand %q\n\n%s", args[0], usage)
		return 2
	}
}

func runBootstrap(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("bootstrap-admin", flag.ContinueOnError)
	email := fs.String("email", cfg.BootstrapAdminEmail, "admin email")
	password := fs.String("password", cfg.BootstrapAdminPassword, "admin password")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer pool.Close()

	auditor := shared.NewAuditor(shared.NewAuditLogger(pool), cfg.AuditStrict, logger)
	svc := users.NewService(users.NewRepository(pool), auditor, clock.NewSystem(), logger)
	return cli.BootstrapCommand(ctx, svc, cli.BootstrapOptions{Email: *email, Password: *password})
}
