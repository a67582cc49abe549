// Package firestore backs the DocumentStore port with Cloud Firestore. Paths
// map one to one onto Firestore document and collection paths.
package firestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"shgbook/internal/core"
	"shgbook/internal/store"
)

const maxConsecutiveErrors = 5

// AppConfig selects the Firebase project and credentials. Empty credentials
// fall back to Application Default Credentials or the emulator.
type AppConfig struct {
	ProjectID       string
	CredentialsFile string
	CredentialsJSON string
}

// NewApp initialises the Firebase app shared by the store and token verification.
func NewApp(ctx context.Context, cfg AppConfig) (*firebase.App, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	return app, nil
}

type Store struct {
	client *firestore.Client
}

// Open creates a Firestore client from app.
func Open(ctx context.Context, app *firebase.App) (*Store, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return New(client), nil
}

func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Get(ctx context.Context, path string) (store.Document, error) {
	path = store.Clean(path)
	if store.IsCollection(path) {
		return store.Document{}, fmt.Errorf("get %q: path is a collection", path)
	}
	snap, err := s.client.Doc(path).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return store.Document{}, store.ErrNoDocument
	}
	if err != nil {
		return store.Document{}, classify("get "+path, err)
	}
	return toDocument(path, snap)
}

func (s *Store) Set(ctx context.Context, path string, data json.RawMessage) error {
	path = store.Clean(path)
	if store.IsCollection(path) {
		return fmt.Errorf("set %q: path is a collection", path)
	}
	fields, err := decodeFields(data)
	if err != nil {
		return fmt.Errorf("set %q: %w", path, err)
	}
	if _, err := s.client.Doc(path).Set(ctx, fields); err != nil {
		return classify("set "+path, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	path = store.Clean(path)
	if _, err := s.client.Doc(path).Delete(ctx); err != nil {
		return classify("delete "+path, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection string) ([]store.Document, error) {
	collection = store.Clean(collection)
	if !store.IsCollection(collection) {
		return nil, fmt.Errorf("list %q: path is a document", collection)
	}
	iter := s.client.Collection(collection).Documents(ctx)
	defer iter.Stop()
	return drain(iter)
}

// Subscribe follows Firestore snapshot listeners. The listener gives up after
// repeated consecutive errors and reports the last one to onChange.
func (s *Store) Subscribe(ctx context.Context, path string, onChange func(store.Snapshot)) (store.Cancel, error) {
	if onChange == nil {
		return nil, fmt.Errorf("subscribe %q: nil callback", path)
	}
	path = store.Clean(path)
	ctx, cancel := context.WithCancel(ctx)

	var next func() (store.Snapshot, error)
	var stop func()
	if store.IsCollection(path) {
		iter := s.client.Collection(path).Snapshots(ctx)
		stop = iter.Stop
		next = func() (store.Snapshot, error) {
			qs, err := iter.Next()
			if err != nil {
				return store.Snapshot{}, err
			}
			docs, err := drain(qs.Documents)
			return store.Snapshot{Path: path, Docs: docs}, err
		}
	} else {
		iter := s.client.Doc(path).Snapshots(ctx)
		stop = iter.Stop
		next = func() (store.Snapshot, error) {
			snap, err := iter.Next()
			if err != nil {
				return store.Snapshot{}, err
			}
			out := store.Snapshot{Path: path}
			if !snap.Exists() {
				return out, nil
			}
			doc, err := toDocument(path, snap)
			if err != nil {
				return out, err
			}
			out.Docs = []store.Document{doc}
			return out, nil
		}
	}

	go func() {
		defer stop()
		consecutiveErrors := 0
		for {
			snap, err := next()
			if err == iterator.Done || ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return
			}
			if err != nil {
				consecutiveErrors++
				slog.Warn("Firestore subscription error", "path", path, "consecutive", consecutiveErrors, "error", err)
				if consecutiveErrors >= maxConsecutiveErrors {
					onChange(store.Snapshot{Path: path, Err: classify("subscribe "+path, err)})
					return
				}
				continue
			}
			consecutiveErrors = 0
			onChange(snap)
		}
	}()
	return store.OnceCancel(cancel), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func drain(iter *firestore.DocumentIterator) ([]store.Document, error) {
	out := make([]store.Document, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return out, nil
		}
		if err != nil {
			return nil, classify("list", err)
		}
		doc, err := toDocument(relPath(snap.Ref.Path), snap)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
}

// relPath strips the "projects/<p>/databases/<db>/documents/" prefix.
func relPath(full string) string {
	const marker = "/documents/"
	if i := strings.Index(full, marker); i >= 0 {
		return full[i+len(marker):]
	}
	return store.Clean(full)
}

func toDocument(path string, snap *firestore.DocumentSnapshot) (store.Document, error) {
	data, err := json.Marshal(snap.Data())
	if err != nil {
		return store.Document{}, fmt.Errorf("encode %q: %w", path, err)
	}
	return store.Document{Path: path, Data: data, UpdatedAt: snap.UpdateTime}, nil
}

// decodeFields turns a JSON object into Firestore field values, keeping
// integral numbers as int64.
func decodeFields(data json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("invalid JSON document: %w", err)
	}
	if fields == nil {
		return nil, errors.New("document must be a JSON object")
	}
	return convertNumbers(fields).(map[string]any), nil
}

func convertNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, item := range t {
			t[k] = convertNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = convertNumbers(item)
		}
		return t
	default:
		return v
	}
}

func classify(op string, err error) error {
	if status.Code(err) == codes.PermissionDenied {
		return fmt.Errorf("%s: %w: %v", op, core.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
