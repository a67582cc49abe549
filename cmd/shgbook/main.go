package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"shgbook/internal/auth"
	"shgbook/internal/cli"
	apphttp "shgbook/internal/http"
	"shgbook/internal/log"
	"shgbook/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig()
	logger.Info("Starting shgbook server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	res := cli.OpenBackend(startCtx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend close failed", log.FieldError, err)
		}
	}()

	events, closeEvents := cli.OpenPublisher(logger, cfg)
	defer closeEvents()

	svc := cli.NewServices(logger, cfg, res, events)

	verifier, err := cli.NewVerifier(startCtx, cfg, res)
	if err != nil {
		logger.Error("Failed to initialize identity verifier", "auth_mode", cfg.AuthMode, log.FieldError, err)
		os.Exit(1)
	}

	opts := apphttp.Options{
		Addr:               ":" + cfg.Port,
		Services:           svc,
		Ready:              res.Repo,
		Auth:               auth.NewMiddleware(verifier, res.Repo, logger, apphttp.WriteError),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	}
	sheetsClient, err := cli.OpenSheets(startCtx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	if sheetsClient != nil {
		opts.Importer = worker.NewSheetImporter(sheetsClient, svc.Ledger, logger)
	}

	srv, err := apphttp.NewServer(opts)
	if err != nil {
		logger.Error("Failed to create HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
