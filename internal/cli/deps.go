package cli

import (
	"context"
	"fmt"
	"os"

	"shgbook/internal/amqp"
	"shgbook/internal/auth"
	"shgbook/internal/backend"
	"shgbook/internal/config"
	"shgbook/internal/log"
	"shgbook/internal/services"
	gsheet "shgbook/internal/sheets/google"
	"shgbook/internal/store/firestore"
)

// NewVerifier builds the identity verifier selected by AUTH_MODE. The
// firebase mode reuses the backend's app when the store is Firestore.
func NewVerifier(ctx context.Context, cfg *config.Config, res *backend.Result) (auth.Verifier, error) {
	switch cfg.AuthMode {
	case "firebase":
		app := res.Firebase
		if app == nil {
			var err error
			app, err = firestore.NewApp(ctx, firestore.AppConfig{
				ProjectID:       cfg.FirebaseProjectID,
				CredentialsFile: cfg.GoogleCredentialsFile,
				CredentialsJSON: cfg.GoogleCredentialsJSON,
			})
			if err != nil {
				return nil, fmt.Errorf("firebase app: %w", err)
			}
		}
		v, err := auth.NewFirebaseVerifier(ctx, app)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "static":
		tokens := cfg.StaticTokens()
		if len(tokens) == 0 {
			return nil, fmt.Errorf("AUTH_STATIC_TOKENS must list at least one token:uid pair")
		}
		return auth.NewStaticVerifier(tokens), nil
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.AuthMode)
	}
}

// OpenPublisher connects to the broker when AMQP_URL is set. Without a URL
// it returns a nil Publisher and a no-op close.
func OpenPublisher(logger *log.Logger, cfg *config.Config) (services.Publisher, func()) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil, func() {}
	}
	client := MustAMQP(logger, cfg)
	return client, func() {
		if err := client.Close(); err != nil {
			logger.Warn("AMQP close failed", log.FieldError, err)
		}
	}
}

// MustAMQP opens the broker client or exits the process.
func MustAMQP(logger *log.Logger, cfg *config.Config) *amqp.Client {
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	client.WithLogger(logger)
	logger.Info("AMQP client initialized",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return client
}

// OpenSheets creates the spreadsheet client when GOOGLE_SPREADSHEET_ID is
// set and returns nil otherwise.
func OpenSheets(ctx context.Context, logger *log.Logger, cfg *config.Config) (*gsheet.Client, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
		return nil, nil
	}
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID: cfg.GoogleSpreadsheetID,
		Credentials: gsheet.Credentials{
			ClientJSON: cfg.GoogleOAuthClientJSON,
			ClientFile: cfg.GoogleOAuthClientFile,
			TokenJSON:  cfg.GoogleOAuthTokenJSON,
			TokenFile:  cfg.GoogleOAuthTokenFile,
		},
		MaxAmount: cfg.MaxAmount,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}

// NewServices wires the use cases for a process.
func NewServices(logger *log.Logger, cfg *config.Config, res *backend.Result, events services.Publisher) *services.Services {
	return services.New(services.Deps{
		Repo:                res.Repo,
		Events:              events,
		Logger:              logger,
		DefaultInterestRate: cfg.DefaultInterestRate,
		MaxAmount:           cfg.MaxAmount,
	})
}
