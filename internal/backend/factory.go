package backend

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"

	"shgbook/internal/log"
	"shgbook/internal/seed"
	"shgbook/internal/store"
	"shgbook/internal/store/firestore"
	"shgbook/internal/store/memory"
	"shgbook/internal/store/mongo"
	"shgbook/internal/store/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentStore)}
}

// CreateBackend opens the configured store, binds the group repository and
// applies the seed when the group is empty.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		docs store.DocumentStore
		app  *firebase.App
		err  error
	)
	switch config.Type {
	case MemoryBackend:
		docs = memory.New()
	case SQLiteBackend:
		docs, err = sqlite.Open(config.SQLiteDBPath, sqlite.Options{})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
	case FirestoreBackend:
		app, err = firestore.NewApp(ctx, firestore.AppConfig{
			ProjectID:       config.FirebaseProjectID,
			CredentialsFile: config.GoogleCredentialsFile,
			CredentialsJSON: config.GoogleCredentialsJSON,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
		}
		docs, err = firestore.Open(ctx, app)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Firestore store: %w", err)
		}
	case MongoBackend:
		docs, err = mongo.Open(ctx, config.MongoURI, config.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Mongo store: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	repo := store.NewRepository(docs, config.GroupID, config.MaxAmount)
	if err := f.seed(ctx, config, repo); err != nil {
		_ = docs.Close()
		return nil, err
	}

	f.logger.Info("Initialized backend",
		log.FieldBackend, config.Type.String(),
		"group_id", config.GroupID)

	return &Result{
		Store:    docs,
		Repo:     repo,
		Firebase: app,
		Cleanup:  docs.Close,
	}, nil
}

func (f *DefaultFactory) seed(ctx context.Context, config Config, repo *store.Repository) error {
	var s seed.Seed
	switch {
	case config.SeedFile != "":
		loaded, err := seed.LoadFile(config.SeedFile)
		if err != nil {
			return fmt.Errorf("load seed: %w", err)
		}
		s = loaded
	case config.Type == MemoryBackend:
		s = seed.Sample()
	default:
		return nil
	}

	wrote, err := seed.Write(ctx, repo, s, false)
	if err != nil {
		return fmt.Errorf("write seed: %w", err)
	}
	if wrote {
		f.logger.Info("Seeded empty group",
			"members", len(s.Members),
			"years", len(s.Years))
	}
	return nil
}
