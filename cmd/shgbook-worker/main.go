package main

import (
	"context"
	"errors"
	"os"
	"time"

	"shgbook/internal/cli"
	"shgbook/internal/log"
	"shgbook/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig()
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting shgbook-worker")

	if err := cfg.ValidateSheets(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.DataBackend == "memory" {
		logger.Error("The export worker needs a shared store; memory is process local", log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	res := cli.OpenBackend(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend close failed", log.FieldError, err)
		}
	}()

	sheetsClient, err := cli.OpenSheets(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient := cli.MustAMQP(logger, cfg)
	defer amqpClient.Close()

	exporter := worker.NewExportWorker(res.Repo, sheetsClient, logger)

	logger.Info("Performing startup export...")
	if err := exporter.StartupExport(ctx); err != nil {
		logger.Error("Failed startup export", log.FieldError, err)
	}

	if err := amqpClient.ConsumeLedgerSaved(ctx, exporter.HandleLedgerSaved); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
