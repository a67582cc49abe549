package backend

import (
	"context"

	firebase "firebase.google.com/go/v4"

	"shgbook/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result holds the opened store and the repository bound to the configured group.
type Result struct {
	Store store.DocumentStore
	Repo  *store.Repository
	// Firebase is set for the firestore backend so identity checks can share
	// the app.
	Firebase *firebase.App
	Cleanup  CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type      BackendType
	GroupID   string
	MaxAmount int64

	// SeedFile is written to an empty group on startup. The memory backend
	// falls back to the bundled sample.
	SeedFile string

	// SQLite specific
	SQLiteDBPath string

	// Firestore specific
	FirebaseProjectID     string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	// MongoDB specific
	MongoURI      string
	MongoDatabase string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend    BackendType = "memory"
	SQLiteBackend    BackendType = "sqlite"
	FirestoreBackend BackendType = "firestore"
	MongoBackend     BackendType = "mongo"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, FirestoreBackend, MongoBackend:
		return true
	default:
		return false
	}
}
