package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shgbook/internal/core"
	"shgbook/internal/store"
	"shgbook/internal/store/memory"
)

const seedYAML = `
group:
  nameEN: Test Group
  monthlySaving: 500
  interestRate: 0.02
members:
  - id: 1
    name: Anita
  - id: 2
    name: Bala
    nameTA: பாலா
years:
  - year: 2024
    months:
      - index: 0
        saving: 500
      - index: 1
        saving: 500
        entries:
          - member: 2
            saving: 500
            loan: 1000
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(seedYAML))
	require.NoError(t, err)

	assert.Equal(t, "Test Group", s.Group.NameEN)
	assert.Equal(t, 2, s.Group.TotalMembers)
	assert.Equal(t, []int{1, 2}, s.MemberIDs())
	assert.Equal(t, "Anita", s.Members[0].NameTA, "missing nameTA falls back to name")

	require.Len(t, s.Years, 1)
	feb := s.Years[0].Months[1]
	bala, ok := feb.Find(2)
	require.True(t, ok)
	assert.Equal(t, int64(1000), bala.Cumulative)
	assert.Equal(t, int64(20), bala.CurrentInterest)
	assert.Equal(t, int64(1000), bala.Balance)
	assert.Equal(t, int64(1000), feb.TotalSaving)
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"bad yaml":         "group: [",
		"bad rate":         "group: {interestRate: -1}",
		"duplicate member": "members: [{id: 1, name: A}, {id: 1, name: B}]",
		"zero member id":   "members: [{id: 0, name: A}]",
		"missing name":     "members: [{id: 1}]",
		"bad year":         "years: [{year: 1800}]",
		"bad month":        "members: [{id: 1, name: A}]\nyears: [{year: 2024, months: [{index: 12}]}]",
		"unknown member":   "members: [{id: 1, name: A}]\nyears: [{year: 2024, months: [{index: 0, entries: [{member: 9, saving: 1}]}]}]",
		"negative amount":  "members: [{id: 1, name: A}]\nyears: [{year: 2024, months: [{index: 0, entries: [{member: 1, saving: -1}]}]}]",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(in))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, s.Members, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSample(t *testing.T) {
	s := Sample()
	require.Len(t, s.Members, 14)
	require.Len(t, s.Years, 1)
	y := s.Years[0]
	assert.Equal(t, SampleYear, y.Year)

	june := y.Months[5]
	assert.Equal(t, int64(7000), june.TotalSaving)
	assert.Equal(t, int64(14*500*6), june.TotalCumulative)

	m12, _ := june.Find(12)
	assert.Equal(t, int64(9000), m12.OldLoan)
	assert.Equal(t, int64(200), m12.OldInterest)
	assert.Equal(t, int64(9000), m12.Balance)

	m8, _ := june.Find(8)
	assert.Equal(t, int64(360), m8.CurrentInterest)
	assert.Equal(t, int64(18000), m8.Balance)

	july := y.Months[6]
	assert.Equal(t, int64(0), july.TotalSaving)
	assert.Equal(t, june.TotalCumulative, july.TotalCumulative)
}

func TestWrite(t *testing.T) {
	ctx := context.Background()
	docs := memory.New()
	defer docs.Close()
	repo := store.NewRepository(docs, "demo", core.DefaultMaxAmount)

	wrote, err := Write(ctx, repo, Sample(), false)
	require.NoError(t, err)
	assert.True(t, wrote)

	members, err := repo.Members(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 14)
	_, err = repo.Year(ctx, SampleYear)
	require.NoError(t, err)

	wrote, err = Write(ctx, repo, Sample(), false)
	require.NoError(t, err)
	assert.False(t, wrote, "existing group is left alone")

	wrote, err = Write(ctx, repo, Sample(), true)
	require.NoError(t, err)
	assert.True(t, wrote)
}

type brokenStore struct{ store.DocumentStore }

func (brokenStore) Get(context.Context, string) (store.Document, error) {
	return store.Document{}, errors.New("unavailable")
}

func TestWriteSurfacesLoadFailures(t *testing.T) {
	repo := store.NewRepository(brokenStore{}, "demo", 0)
	_, err := Write(context.Background(), repo, Sample(), false)
	assert.True(t, errors.Is(err, core.ErrPersistence))
}
