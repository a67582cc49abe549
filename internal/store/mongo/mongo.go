// Package mongo keeps every document in one MongoDB collection keyed by path.
// Change streams, when the deployment supports them, carry writes made by
// other processes to local subscribers.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shgbook/internal/core"
	"shgbook/internal/store"
)

const documentsCollection = "documents"

type record struct {
	Path       string    `bson:"_id"`
	Collection string    `bson:"collection"`
	Data       bson.Raw  `bson:"data"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	hub    store.Hub

	stopWatch context.CancelFunc
	watchDone chan struct{}
	closeOnce sync.Once
}

// Open connects to uri and prepares the documents collection in database.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s, err := New(ctx, client.Database(database).Collection(documentsCollection))
	if err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	s.client = client
	return s, nil
}

// New wraps an existing collection. The caller keeps ownership of the client.
func New(ctx context.Context, coll *mongo.Collection) (*Store, error) {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "collection", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return nil, classify("create index", err)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s := &Store{coll: coll, stopWatch: cancel, watchDone: make(chan struct{})}
	go s.watch(watchCtx)
	return s, nil
}

func (s *Store) Get(ctx context.Context, path string) (store.Document, error) {
	path = store.Clean(path)
	if store.IsCollection(path) {
		return store.Document{}, fmt.Errorf("get %q: path is a collection", path)
	}
	var rec record
	err := s.coll.FindOne(ctx, bson.M{"_id": path}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.Document{}, store.ErrNoDocument
	}
	if err != nil {
		return store.Document{}, classify("get "+path, err)
	}
	return toDocument(rec)
}

func (s *Store) Set(ctx context.Context, path string, data json.RawMessage) error {
	path = store.Clean(path)
	if store.IsCollection(path) {
		return fmt.Errorf("set %q: path is a collection", path)
	}
	var parsed bson.D
	if err := bson.UnmarshalExtJSON(data, false, &parsed); err != nil {
		return fmt.Errorf("set %q: invalid JSON document: %w", path, err)
	}
	fields, err := bson.Marshal(parsed)
	if err != nil {
		return fmt.Errorf("set %q: %w", path, err)
	}
	rec := record{Path: path, Collection: store.Parent(path), Data: fields, UpdatedAt: time.Now().UTC()}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": path}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return classify("set "+path, err)
	}
	s.hub.Publish(path)
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	path = store.Clean(path)
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": path})
	if err != nil {
		return classify("delete "+path, err)
	}
	if res.DeletedCount > 0 {
		s.hub.Publish(path)
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection string) ([]store.Document, error) {
	collection = store.Clean(collection)
	cur, err := s.coll.Find(ctx, bson.M{"collection": collection}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, classify("list "+collection, err)
	}
	defer cur.Close(ctx)

	out := make([]store.Document, 0)
	for cur.Next(ctx) {
		var rec record
		if err := cur.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode %q: %w", collection, err)
		}
		doc, err := toDocument(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, classify("list "+collection, err)
	}
	return out, nil
}

func (s *Store) Subscribe(ctx context.Context, path string, onChange func(store.Snapshot)) (store.Cancel, error) {
	if onChange == nil {
		return nil, fmt.Errorf("subscribe %q: nil callback", path)
	}
	load := func(ctx context.Context) store.Snapshot { return store.LoadSnapshot(ctx, s, path) }
	return s.hub.Watch(ctx, path, load, onChange), nil
}

func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.stopWatch()
		<-s.watchDone
		s.hub.Close()
		if s.client != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = s.client.Disconnect(ctx)
		}
	})
	return err
}

// watch republishes change stream events. Standalone servers reject change
// streams; local subscribers still see this process's writes.
func (s *Store) watch(ctx context.Context) {
	defer close(s.watchDone)
	stream, err := s.coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		if ctx.Err() == nil {
			slog.Info("Mongo change streams unavailable, using in-process notifications", "error", err)
		}
		return
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var event struct {
			DocumentKey struct {
				ID string `bson:"_id"`
			} `bson:"documentKey"`
		}
		if err := stream.Decode(&event); err != nil {
			slog.Warn("Failed to decode change event", "error", err)
			continue
		}
		s.hub.Publish(event.DocumentKey.ID)
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		slog.Warn("Mongo change stream stopped", "error", err)
	}
}

func toDocument(rec record) (store.Document, error) {
	data, err := bson.MarshalExtJSON(rec.Data, false, false)
	if err != nil {
		return store.Document{}, fmt.Errorf("encode %q: %w", rec.Path, err)
	}
	return store.Document{Path: rec.Path, Data: data, UpdatedAt: rec.UpdatedAt}, nil
}

func classify(op string, err error) error {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && (cmdErr.Code == 13 || cmdErr.Name == "Unauthorized") {
		return fmt.Errorf("%s: %w: %v", op, core.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
