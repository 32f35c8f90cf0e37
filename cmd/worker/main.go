package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/openladder/laddercore/internal/app"
	"github.com/openladder/laddercore/internal/config"
	"github.com/openladder/laddercore/internal/observability"
	"github.com/openladder/laddercore/internal/platform/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.NewJSON(cfg.LogLevel).With(
		"service", cfg.ServiceName,
		"version", cfg.ServiceVersion,
	)
	logging.SetDefault(logger)
	defer logger.Sync()

	stopProfiler, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		logger.Error("init pyroscope", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := stopProfiler(); err != nil {
			logger.Error("stop pyroscope", "error", err)
		}
	}()

	worker, err := app.NewWorker(cfg, logger)
	if err != nil {
		logger.Error("build worker", "error", err)
		os.Exit(1)
	}
	defer worker.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := worker.Cycle.RunCycle(ctx, cfg.Regions, cfg.Season)
	if err != nil {
		logger.Error("cycle failed", "season", cfg.Season, "error", err)
		os.Exit(1)
	}

	logger.Info("cycle finished",
		"season", cfg.Season,
		"regions", len(report.Regions),
		"partitions", report.Population,
		"ranked", report.Ranks.Ranked,
		"excluded", report.Ranks.Excluded,
		"resolved", report.Resolution.Resolved,
		"unresolved", report.Resolution.Unresolved,
		"states_archived", report.Retention.Archived,
		"states_deleted", report.Retention.Deleted,
	)
}
