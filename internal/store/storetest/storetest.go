// Package storetest holds the behaviour every DocumentStore backend must share.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shgbook/internal/store"
)

// Factory returns an empty store and a unique document-path prefix (an even
// number of segments, e.g. "suite/<run id>") so shared backends do not collide.
type Factory func(t *testing.T) (s store.DocumentStore, prefix string)

// Run exercises s against the DocumentStore contract.
func Run(t *testing.T, factory Factory) {
	t.Run("GetMissing", func(t *testing.T) {
		s, p := factory(t)
		_, err := s.Get(context.Background(), p+"/groups/g/years/1999")
		assert.True(t, errors.Is(err, store.ErrNoDocument), "got %v", err)
	})

	t.Run("SetGetOverwrite", func(t *testing.T) {
		s, p := factory(t)
		ctx := context.Background()
		path := p + "/groups/g/members/1"
		require.NoError(t, s.Set(ctx, path, json.RawMessage(`{"id":1,"name":"A"}`)))
		require.NoError(t, s.Set(ctx, path, json.RawMessage(`{"id":1,"name":"B"}`)))

		doc, err := s.Get(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, store.Clean(path), doc.Path)
		assert.JSONEq(t, `{"id":1,"name":"B"}`, string(doc.Data))
	})

	t.Run("ListAndDelete", func(t *testing.T) {
		s, p := factory(t)
		ctx := context.Background()
		coll := p + "/groups/g/members"
		for _, id := range []string{"1", "2", "3"} {
			require.NoError(t, s.Set(ctx, coll+"/"+id, json.RawMessage(`{"id":`+id+`}`)))
		}
		require.NoError(t, s.Set(ctx, p+"/groups/g/years/2024", json.RawMessage(`{"year":2024}`)))

		docs, err := s.List(ctx, coll)
		require.NoError(t, err)
		require.Len(t, docs, 3)

		require.NoError(t, s.Delete(ctx, coll+"/2"))
		docs, err = s.List(ctx, coll)
		require.NoError(t, err)
		ids := []string{}
		for _, d := range docs {
			ids = append(ids, store.ID(d.Path))
		}
		assert.ElementsMatch(t, []string{"1", "3"}, ids)

		assert.NoError(t, s.Delete(ctx, coll+"/404"), "deleting a missing document is not an error")
	})

	t.Run("SubscribeDocument", func(t *testing.T) {
		s, p := factory(t)
		ctx := context.Background()
		path := p + "/groups/g/years/2024"
		require.NoError(t, s.Set(ctx, path, json.RawMessage(`{"year":2024,"v":1}`)))

		rec := newRecorder()
		cancel, err := s.Subscribe(ctx, path, rec.add)
		require.NoError(t, err)
		defer cancel()

		rec.waitFor(t, func(snaps []store.Snapshot) bool {
			return len(snaps) >= 1 && len(snaps[0].Docs) == 1
		})
		require.NoError(t, s.Set(ctx, path, json.RawMessage(`{"year":2024,"v":2}`)))
		rec.waitFor(t, func(snaps []store.Snapshot) bool {
			last := snaps[len(snaps)-1]
			return len(last.Docs) == 1 && jsonField(last.Docs[0].Data, "v") == 2
		})
		require.NoError(t, s.Delete(ctx, path))
		rec.waitFor(t, func(snaps []store.Snapshot) bool {
			return len(snaps[len(snaps)-1].Docs) == 0
		})

		cancel()
		cancel()
	})

	t.Run("SubscribeCollection", func(t *testing.T) {
		s, p := factory(t)
		ctx := context.Background()
		coll := p + "/groups/g/activityLog"

		rec := newRecorder()
		cancel, err := s.Subscribe(ctx, coll, rec.add)
		require.NoError(t, err)
		defer cancel()

		require.NoError(t, s.Set(ctx, coll+"/a", json.RawMessage(`{"n":1}`)))
		require.NoError(t, s.Set(ctx, coll+"/b", json.RawMessage(`{"n":2}`)))
		rec.waitFor(t, func(snaps []store.Snapshot) bool {
			return len(snaps[len(snaps)-1].Docs) == 2
		})
	})

	t.Run("CancelStopsDelivery", func(t *testing.T) {
		s, p := factory(t)
		ctx := context.Background()
		path := p + "/groups/g/members/9"

		rec := newRecorder()
		cancel, err := s.Subscribe(ctx, path, rec.add)
		require.NoError(t, err)
		rec.waitFor(t, func(snaps []store.Snapshot) bool { return len(snaps) >= 1 })
		cancel()

		time.Sleep(100 * time.Millisecond)
		before := rec.len()
		require.NoError(t, s.Set(ctx, path, json.RawMessage(`{"id":9}`)))
		time.Sleep(200 * time.Millisecond)
		assert.Equal(t, before, rec.len())
	})
}

type recorder struct {
	mu    sync.Mutex
	snaps []store.Snapshot
}

func newRecorder() *recorder { return &recorder{} }

func (r *recorder) add(s store.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func (r *recorder) waitFor(t *testing.T, cond func([]store.Snapshot) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.snaps) > 0 && cond(r.snaps)
	}, 10*time.Second, 20*time.Millisecond)
}

func jsonField(data json.RawMessage, key string) float64 {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return -1
	}
	f, _ := m[key].(float64)
	return f
}
