package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"newsdigest/internal/app"
	"newsdigest/internal/config"
	"newsdigest/internal/logging"
)

func main() {
	schedule := flag.Bool("schedule", false, "run on the configured cron schedule instead of once")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	run := application.Run
	if *schedule {
		run = application.RunScheduled
	}

	exitCode := 0
	if err := run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		exitCode = 1
	}

	if err := application.Close(); err != nil {
		logger.Error("shutdown cleanup failed", "error", err)
	}
	os.Exit(exitCode)
}
