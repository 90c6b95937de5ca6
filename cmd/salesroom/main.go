package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/salesroom/salesroom/cmd/salesroom/cli"
	"github.com/salesroom/salesroom/internal/app"
	dashboardhttp "github.com/salesroom/salesroom/internal/dashboard/http"
	"github.com/salesroom/salesroom/internal/observability"
	"github.com/salesroom/salesroom/internal/platform/cache"
	"github.com/salesroom/salesroom/jobs"
)

const usage = `usage: salesroom [serve | report [flags] | jobs trigger|stats]`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}
	switch command {
	case "serve":
		if app.InTestMode() {
			slog.Default().Info("test mode detected, skipping runtime startup")
			return
		}
		os.Exit(serve(ctx))
	case "report":
		opts, err := cli.ParseReportArgs(args, os.Stderr)
		if err != nil {
			os.Exit(cli.ExitError)
		}
		os.Exit(cli.ReportCommand(ctx, opts))
	case "jobs":
		os.Exit(runJobs(ctx, args))
	default:
		_, _ = fmt.Fprintln(os.Stderr, usage)
		os.Exit(cli.ExitError)
	}
}

func runJobs(ctx context.Context, args []string) int {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	jobsCLI, err := cli.NewJobsCLI(addr)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return cli.ExitError
	}
	defer func() { _ = jobsCLI.Close() }()
	return jobsCLI.JobsCommand(ctx, args, os.Stdout, os.Stderr)
}

func serve(ctx context.Context) int {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return cli.ExitError
	}

	logger := app.NewLogger(cfg)

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, caching disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	dash, err := app.NewDashboard(cfg, redisClient, metrics.Pipeline(), logger)
	if err != nil {
		logger.Error("init dashboard", slog.Any("error", err))
		return cli.ExitError
	}
	if err := dash.Cache.Listen(ctx); err != nil {
		logger.Warn("feed cache listener", slog.Any("error", err))
	}
	if err := dash.RateCache.ListenForInvalidation(ctx); err != nil {
		logger.Warn("rate cache listener", slog.Any("error", err))
	}

	var (
		enqueuer   dashboardhttp.RefreshEnqueuer
		jobHandler *jobs.Handler
	)
	if redisClient != nil {
		connOpt, err := app.RedisConnOpt(cfg.RedisAddr)
		if err != nil {
			logger.Error("redis options", slog.Any("error", err))
			return cli.ExitError
		}
		jobClient, err := jobs.NewClient(connOpt)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			return cli.ExitError
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		enqueuer = jobClient

		inspector := asynq.NewInspector(connOpt)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		DashboardHandler: dashboardhttp.NewHandler(logger, dash.Service, enqueuer, cfg.AppRequestTimeout),
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	code := cli.ExitOK
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			logger.Error("http server", slog.Any("error", err))
			code = cli.ExitError
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return code
}
