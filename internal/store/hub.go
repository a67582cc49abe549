package store

import (
	"context"
	"errors"
	"sync"
)

// Hub fans change notifications out to in-process subscribers. Backends
// without native change feeds call Publish after each successful write.
type Hub struct {
	mu     sync.Mutex
	next   int
	subs   map[int]*watcher
	closed bool
}

type watcher struct {
	path   string
	notify chan struct{}
	cancel context.CancelFunc
}

// Watch delivers load's snapshot now and after every Publish touching path.
// Notifications arriving while a delivery is running are coalesced.
func (h *Hub) Watch(ctx context.Context, path string, load func(context.Context) Snapshot, onChange func(Snapshot)) Cancel {
	ctx, cancel := context.WithCancel(ctx)
	w := &watcher{path: Clean(path), notify: make(chan struct{}, 1), cancel: cancel}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		return OnceCancel(func() {})
	}
	if h.subs == nil {
		h.subs = make(map[int]*watcher)
	}
	id := h.next
	h.next++
	h.subs[id] = w
	h.mu.Unlock()

	go func() {
		defer h.remove(id)
		onChange(load(ctx))
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.notify:
				if ctx.Err() != nil {
					return
				}
				onChange(load(ctx))
			}
		}
	}()
	return OnceCancel(cancel)
}

// Publish wakes subscribers of path and of its parent collection.
func (h *Hub) Publish(path string) {
	path = Clean(path)
	parent := Parent(path)
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, w := range h.subs {
		if w.path != path && w.path != parent {
			continue
		}
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
}

// Close cancels every subscription and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, w := range h.subs {
		w.cancel()
	}
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// LoadSnapshot builds the snapshot for path from Get or List.
func LoadSnapshot(ctx context.Context, s DocumentStore, path string) Snapshot {
	snap := Snapshot{Path: Clean(path)}
	if IsCollection(path) {
		docs, err := s.List(ctx, path)
		snap.Docs, snap.Err = docs, err
		return snap
	}
	doc, err := s.Get(ctx, path)
	switch {
	case err == nil:
		snap.Docs = []Document{doc}
	case !errors.Is(err, ErrNoDocument):
		snap.Err = err
	}
	return snap
}
