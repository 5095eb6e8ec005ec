package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/jrazmi/allmyducks/app/allmyducks/api"
	"github.com/jrazmi/allmyducks/app/allmyducks/config"
	"github.com/jrazmi/allmyducks/bridge/scaffolding/mid"
	"github.com/jrazmi/allmyducks/bridge/usecases/transfercasebridge"
	"github.com/jrazmi/allmyducks/core/repositories/todosrepo"
	"github.com/jrazmi/allmyducks/core/usecases/transfercase"
	"github.com/jrazmi/allmyducks/infrastructure/jwtauth"
	"github.com/jrazmi/allmyducks/infrastructure/scheduler"
	"github.com/jrazmi/allmyducks/infrastructure/web"
	"github.com/jrazmi/allmyducks/sdk/logger"
	"github.com/jrazmi/allmyducks/sdk/telemetry"
)

var build = "develop"
var appName = "ALLMYDUCKS"

func main() {
	cfg, err := config.Load(appName)
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading config:", err)
		os.Exit(1)
	}

	tel := telemetry.NewTelemetry()
	log := logger.New(cfg.Log,
		logger.WithService(appName),
		logger.WithTraceID(tel.GetTraceID),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, tel, cfg); err != nil {
		log.ErrorContext(ctx, "startup", "err", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger, tel telemetry.Telemetry, cfg config.Config) error {
	log.InfoContext(ctx, "startup", "GOMAXPROCS", runtime.GOMAXPROCS(0), "build", build)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// :*: START DATABASES :*:
	store, err := config.OpenStore(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.InfoContext(ctx, "shutdown", "status", "closing database connection")
		store.Close()
	}()
	log.InfoContext(ctx, "init", "service", store.Driver)

	if !cfg.Database.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating %s: %w", store.Driver, err)
		}
	}

	// REPOSITORIES & CASES //
	log.InfoContext(ctx, "startup", "status", "initializing repository support", "timezone", loc.String())
	repo := todosrepo.NewRepository(log, store.Storer, todosrepo.WithLocation(loc))
	engine := transfercase.NewEngine(log, repo, transfercase.WithConcurrency(cfg.Transfer.Concurrency))

	auth, err := jwtauth.New(cfg.Auth)
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}

	// SCHEDULER //
	sched := scheduler.New(log.Logger, scheduler.WithLocation(loc))
	defer sched.Stop()

	var schedule transfercasebridge.ScheduleStatus
	if !cfg.Transfer.ScheduleDisabled {
		handle, err := sched.ScheduleDaily(config.TransferJob, cfg.Transfer.Schedule, dailyTransfer(log, tel, engine))
		if err != nil {
			return fmt.Errorf("scheduling daily transfer: %w", err)
		}
		schedule = func() (scheduler.Status, error) {
			return sched.Status(handle)
		}
	}

	// WEB //
	handler := web.NewWebHandler(cfg.HTTP,
		web.WithLogging(log.Logger),
		web.WithTelemetry(tel),
		web.WithGlobalMiddleware(
			mid.Logger(log),
			mid.Errors(log),
			mid.Metrics(),
			mid.Panics(),
		),
	)
	api.AddHandlers(handler, api.Config{
		Service:    appName,
		Build:      build,
		Log:        log,
		Auth:       auth,
		Database:   store.Check,
		Repository: repo,
		Engine:     engine,
		Schedule:   schedule,
	})

	server := web.NewServer(cfg.Web,
		web.WithHandler(handler),
		web.WithErrorLog(logger.NewStdLogger(log, slog.LevelError)),
	)

	log.InfoContext(ctx, "startup", "status", "api router started", "host", server.Addr)
	if err := server.Serve(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.InfoContext(ctx, "shutdown", "status", "shutdown complete")
	return nil
}

// dailyTransfer runs the unscoped transfer. A run where any user group
// failed is reported to the scheduler as an error.
func dailyTransfer(log *logger.Logger, tel telemetry.Telemetry, engine *transfercase.Engine) scheduler.JobFunc {
	return func(ctx context.Context) error {
		ctx = tel.SetTraceID(ctx)

		res, err := engine.Execute(ctx, transfercase.Request{})
		if err != nil {
			return fmt.Errorf("daily transfer: %w", err)
		}
		log.InfoContext(ctx, "daily transfer", "identified", res.Identified, "transferred", res.Transferred, "success", res.Success)
		if !res.Success {
			return fmt.Errorf("daily transfer: %d user groups failed", len(res.FailedGroups))
		}
		return nil
	}
}
