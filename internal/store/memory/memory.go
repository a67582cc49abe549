// Package memory is an in-process DocumentStore for development and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"shgbook/internal/store"
)

type Store struct {
	mu   sync.RWMutex
	docs map[string]store.Document
	hub  store.Hub
	now  func() time.Time
}

func New() *Store {
	return &Store{docs: make(map[string]store.Document), now: time.Now}
}

func (s *Store) Get(ctx context.Context, path string) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return store.Document{}, err
	}
	path = store.Clean(path)
	if store.IsCollection(path) {
		return store.Document{}, fmt.Errorf("get %q: path is a collection", path)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[path]
	if !ok {
		return store.Document{}, store.ErrNoDocument
	}
	return copyDoc(doc), nil
}

func (s *Store) Set(ctx context.Context, path string, data json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path = store.Clean(path)
	if store.IsCollection(path) {
		return fmt.Errorf("set %q: path is a collection", path)
	}
	if !json.Valid(data) {
		return fmt.Errorf("set %q: invalid JSON document", path)
	}
	s.mu.Lock()
	s.docs[path] = copyDoc(store.Document{Path: path, Data: data, UpdatedAt: s.now().UTC()})
	s.mu.Unlock()
	s.hub.Publish(path)
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path = store.Clean(path)
	s.mu.Lock()
	_, existed := s.docs[path]
	delete(s.docs, path)
	s.mu.Unlock()
	if existed {
		s.hub.Publish(path)
	}
	return nil
}

// List returns the direct children of collection ordered by path.
func (s *Store) List(ctx context.Context, collection string) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	collection = store.Clean(collection)
	s.mu.RLock()
	out := make([]store.Document, 0)
	for path, doc := range s.docs {
		if store.Parent(path) == collection {
			out = append(out, copyDoc(doc))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *Store) Subscribe(ctx context.Context, path string, onChange func(store.Snapshot)) (store.Cancel, error) {
	if onChange == nil {
		return nil, fmt.Errorf("subscribe %q: nil callback", path)
	}
	load := func(ctx context.Context) store.Snapshot { return store.LoadSnapshot(ctx, s, path) }
	return s.hub.Watch(ctx, path, load, onChange), nil
}

// Subscribers reports live subscriptions. Used by readiness checks and tests.
func (s *Store) Subscribers() int { return s.hub.Len() }

func (s *Store) Close() error {
	s.hub.Close()
	return nil
}

func copyDoc(d store.Document) store.Document {
	d.Data = append(json.RawMessage(nil), d.Data...)
	return d
}
