package main

import (
	"context"
	"os"
	"time"

	"shgbook/internal/cli"
	"shgbook/internal/log"
	"shgbook/internal/services"
)

func main() {
	cfg, logger := cli.LoadConfig()
	logger = logger.WithComponent(log.ComponentScheduler)
	logger.Info("Starting shgbook-scheduler", "interval", cfg.ExportInterval)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export scheduler")
		os.Exit(1)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	res := cli.OpenBackend(startCtx, logger, cfg)
	startCancel()
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend close failed", log.FieldError, err)
		}
	}()

	amqpClient := cli.MustAMQP(logger, cfg)
	defer amqpClient.Close()

	scheduler := services.NewExportScheduler(res.Repo, amqpClient, services.ExportSchedulerConfig{
		PollInterval: cfg.ExportInterval,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Error("Scheduler stop failed", log.FieldError, err)
		}
	})

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start export scheduler", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
