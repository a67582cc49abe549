// Package sqlite stores documents in a single SQLite table. A change log
// table lets separate processes sharing the file observe each other's writes.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"shgbook/internal/store"
)

const (
	defaultPollInterval = 2 * time.Second
	changeLogRetention  = 10000
)

type Store struct {
	db  *sql.DB
	hub store.Hub

	lastChange int64
	stopPoll   chan struct{}
	pollDone   chan struct{}
	closeOnce  sync.Once
}

// Options tune the store. Zero values select defaults.
type Options struct {
	PollInterval time.Duration
}

// Open creates the database file if needed, migrates it and starts watching
// the change log.
func Open(dbPath string, opts Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, stopPoll: make(chan struct{}), pollDone: make(chan struct{})}
	if err := db.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM changes`).Scan(&s.lastChange); err != nil {
		db.Close()
		return nil, fmt.Errorf("read change log: %w", err)
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	go s.poll(interval)
	return s, nil
}

func (s *Store) Get(ctx context.Context, path string) (store.Document, error) {
	path = store.Clean(path)
	if store.IsCollection(path) {
		return store.Document{}, fmt.Errorf("get %q: path is a collection", path)
	}
	var data, updated string
	err := s.db.QueryRowContext(ctx, `SELECT data, updated_at FROM documents WHERE path = ?`, path).Scan(&data, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, store.ErrNoDocument
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("get %q: %w", path, err)
	}
	return toDoc(path, data, updated), nil
}

func (s *Store) Set(ctx context.Context, path string, data json.RawMessage) error {
	path = store.Clean(path)
	if store.IsCollection(path) {
		return fmt.Errorf("set %q: path is a collection", path)
	}
	if !json.Valid(data) {
		return fmt.Errorf("set %q: invalid JSON document", path)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (path, collection, data, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
			path, store.Parent(path), string(data), now); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO changes (path, changed_at) VALUES (?, ?)`, path, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("set %q: %w", path, err)
	}
	s.hub.Publish(path)
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	path = store.Clean(path)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var removed int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path)
		if err != nil {
			return err
		}
		removed, _ = res.RowsAffected()
		if removed == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO changes (path, changed_at) VALUES (?, ?)`, path, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete %q: %w", path, err)
	}
	if removed > 0 {
		s.hub.Publish(path)
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection string) ([]store.Document, error) {
	collection = store.Clean(collection)
	rows, err := s.db.QueryContext(ctx, `SELECT path, data, updated_at FROM documents WHERE collection = ? ORDER BY path`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", collection, err)
	}
	defer rows.Close()

	out := make([]store.Document, 0)
	for rows.Next() {
		var path, data, updated string
		if err := rows.Scan(&path, &data, &updated); err != nil {
			return nil, fmt.Errorf("scan %q: %w", collection, err)
		}
		out = append(out, toDoc(path, data, updated))
	}
	return out, rows.Err()
}

func (s *Store) Subscribe(ctx context.Context, path string, onChange func(store.Snapshot)) (store.Cancel, error) {
	if onChange == nil {
		return nil, fmt.Errorf("subscribe %q: nil callback", path)
	}
	load := func(ctx context.Context) store.Snapshot { return store.LoadSnapshot(ctx, s, path) }
	return s.hub.Watch(ctx, path, load, onChange), nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopPoll)
		<-s.pollDone
		s.hub.Close()
		err = s.db.Close()
	})
	return err
}

// poll republishes writes made by other processes sharing the file.
func (s *Store) poll(interval time.Duration) {
	defer close(s.pollDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopPoll:
			return
		case <-ticker.C:
			if err := s.drainChanges(); err != nil {
				slog.Warn("SQLite change log poll failed", "error", err)
			}
		}
	}
}

func (s *Store) drainChanges() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id, path FROM changes WHERE id > ? ORDER BY id`, s.lastChange)
	if err != nil {
		return err
	}
	var paths []string
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			rows.Close()
			return err
		}
		s.lastChange = id
		paths = append(paths, path)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, p := range paths {
		s.hub.Publish(p)
	}
	if len(paths) > 0 {
		_, err = s.db.ExecContext(ctx, `DELETE FROM changes WHERE id <= ?`, s.lastChange-changeLogRetention)
	}
	return err
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func toDoc(path, data, updated string) store.Document {
	doc := store.Document{Path: path, Data: json.RawMessage(data)}
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		doc.UpdatedAt = t
	}
	return doc
}
