package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shgbook/internal/config"
	"shgbook/internal/core"
	"shgbook/internal/seed"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.ErrorContains(t, err, "invalid backend type")

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:   "mongo",
		GroupID:       "g1",
		MaxAmount:     500,
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "shg",
	})
	require.NoError(t, err)
	assert.Equal(t, MongoBackend, cfg.Type)
	assert.Equal(t, "g1", cfg.GroupID)
	assert.Equal(t, int64(500), cfg.MaxAmount)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"memory", Config{Type: MemoryBackend, GroupID: "g"}, true},
		{"missing group", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend, GroupID: "g"}, false},
		{"firestore without project", Config{Type: FirestoreBackend, GroupID: "g"}, false},
		{"mongo without database", Config{Type: MongoBackend, GroupID: "g", MongoURI: "mongodb://x"}, false},
		{"unknown", Config{Type: "sheets", GroupID: "g"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	assert.Equal(t, []string{"memory", "sqlite", "firestore", "mongo"}, GetBackendTypeStrings())
}

func TestMemoryBackendIsSeededWithSample(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, GroupID: "g1"})
	require.NoError(t, err)
	defer res.Cleanup()

	members, err := res.Repo.Members(context.Background())
	require.NoError(t, err)
	assert.Len(t, members, len(seed.Sample().Members))
	assert.Nil(t, res.Firebase)
}

func TestSQLiteBackendSeedsFromFileOnce(t *testing.T) {
	dir := t.TempDir()
	seedFile := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedFile, []byte(`
group:
  nameEN: Lotus
  interestRate: 0.02
  monthlySaving: 300
members:
  - id: 1
    name: Anita
years:
  - year: 2024
    months:
      - index: 0
        saving: 300
`), 0o600))

	cfg := Config{
		Type:         SQLiteBackend,
		GroupID:      "g1",
		MaxAmount:    core.DefaultMaxAmount,
		SeedFile:     seedFile,
		SQLiteDBPath: filepath.Join(dir, "db", "shg.db"),
	}
	ctx := context.Background()

	res, err := NewFactory(nil).CreateBackend(ctx, cfg)
	require.NoError(t, err)
	name := "Renamed"
	_, err = res.Repo.UpdateGroupInfo(ctx, core.GroupPatch{NameEN: &name}, "admin")
	require.NoError(t, err)
	require.NoError(t, res.Cleanup())

	res, err = NewFactory(nil).CreateBackend(ctx, cfg)
	require.NoError(t, err)
	defer res.Cleanup()
	g, err := res.Repo.GroupInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", g.NameEN)

	y, err := res.Repo.Year(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, int64(300), y.Months[0].TotalSaving)
}

func TestCreateBackendRejectsBadSeedFile(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:     MemoryBackend,
		GroupID:  "g1",
		SeedFile: filepath.Join(t.TempDir(), "missing.yaml"),
	})
	assert.ErrorContains(t, err, "load seed")
}
