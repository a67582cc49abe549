// Package store defines the document persistence port shared by every
// backend, plus the typed Repository the services use on top of it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrNoDocument is returned by Get when the path holds no document.
var ErrNoDocument = errors.New("document not found")

type (
	// Document is one stored JSON object.
	Document struct {
		Path      string
		Data      json.RawMessage
		UpdatedAt time.Time
	}

	// Snapshot is the state of a subscribed path. For a document path Docs
	// holds zero or one entry; for a collection it holds every child.
	Snapshot struct {
		Path string
		Docs []Document
		Err  error
	}

	// Cancel stops a subscription. Calling it more than once is safe.
	Cancel func()

	// DocumentStore is an asynchronous key/document store. Writes are
	// last-write-wins; no transactions are offered.
	DocumentStore interface {
		Get(ctx context.Context, path string) (Document, error)
		Set(ctx context.Context, path string, data json.RawMessage) error
		Delete(ctx context.Context, path string) error
		List(ctx context.Context, collection string) ([]Document, error)
		// Subscribe calls onChange with the current snapshot and again after
		// every change until Cancel is called or ctx ends.
		Subscribe(ctx context.Context, path string, onChange func(Snapshot)) (Cancel, error)
		Close() error
	}
)

// Segments splits a slash path, ignoring empty parts.
func Segments(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsCollection reports whether path names a collection: odd segment count.
func IsCollection(path string) bool {
	return len(Segments(path))%2 == 1
}

// Parent returns the collection containing a document path.
func Parent(path string) string {
	segs := Segments(path)
	if len(segs) < 2 {
		return ""
	}
	return strings.Join(segs[:len(segs)-1], "/")
}

// ID returns the last segment of path.
func ID(path string) string {
	segs := Segments(path)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// Clean normalises a path to its canonical slash form.
func Clean(path string) string {
	return strings.Join(Segments(path), "/")
}

// OnceCancel wraps fn so repeated calls run it only once.
func OnceCancel(fn func()) Cancel {
	var once sync.Once
	return func() { once.Do(fn) }
}
