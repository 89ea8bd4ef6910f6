// Package mongostore implements store.Store on MongoDB. Live subscriptions
// are change streams, so production deployments need a replica set.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	db     *mongo.Database
	logger logging.Logger
}

func New(db *mongo.Database, logger logging.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Put(ctx context.Context, collection, id string, data map[string]any) error {
	doc := toBSON(data)
	doc["_id"] = id

	opts := options.Replace().SetUpsert(true)
	_, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc, opts)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	doc := toBSON(data)
	doc["_id"] = id

	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.Document{}, store.ErrNotFound
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	return toDocument(raw), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	res, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": toBSON(fields)},
	)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Find(ctx context.Context, collection string, q store.Query) ([]store.Document, error) {
	opts := options.Find()
	if q.OrderBy != "" {
		direction := 1
		if q.Descending {
			direction = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: direction}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, filterToBSON(q.Filters), opts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var docs []store.Document
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		docs = append(docs, toDocument(raw))
	}

	return docs, cursor.Err()
}

// Subscribe delivers the current matches as Added events and then follows the
// collection's change stream. Delete events cannot be filtered server side
// because the full document is gone, so they are forwarded for the whole
// collection and consumers match on ID.
func (s *Store) Subscribe(ctx context.Context, collection string, q store.Query) (store.Subscription, error) {
	matchStages := bson.A{
		bson.M{"operationType": "delete"},
	}
	match := bson.M{}
	for _, f := range q.Filters {
		if f.Op == store.OpEq {
			match["fullDocument."+f.Field] = f.Value
		}
	}
	matchStages = append(matchStages, match)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": matchStages}}},
	}

	streamOpts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := s.db.Collection(collection).Watch(ctx, pipeline, streamOpts)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", collection, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		events: make(chan store.Event, 256),
		cancel: cancel,
	}

	// Snapshot first so the consumer starts from current state. Changes
	// between the snapshot and the stream opening can be delivered twice,
	// which the at-least-once contract allows.
	snapshot, err := s.Find(ctx, collection, q)
	if err != nil {
		cancel()
		_ = stream.Close(context.Background())
		return nil, err
	}

	go sub.run(subCtx, stream, snapshot, s.logger, collection)

	return sub, nil
}

type subscription struct {
	events    chan store.Event
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (s *subscription) Events() <-chan store.Event {
	return s.events
}

func (s *subscription) Close() {
	s.closeOnce.Do(s.cancel)
}

type changeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument bson.M `bson:"fullDocument"`
}

func (s *subscription) run(ctx context.Context, stream *mongo.ChangeStream, snapshot []store.Document, logger logging.Logger, collection string) {
	defer close(s.events)
	defer stream.Close(context.Background())

	for _, doc := range snapshot {
		select {
		case s.events <- store.Event{Type: store.Added, Doc: doc}:
		case <-ctx.Done():
			return
		}
	}

	for stream.Next(ctx) {
		var change changeEvent
		if err := stream.Decode(&change); err != nil {
			logger.Error(logging.Mongo, logging.LiveQuery, "failed to decode change event", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
				"collection":         collection,
			})
			continue
		}

		ev, ok := translate(change)
		if !ok {
			continue
		}

		select {
		case s.events <- ev:
		case <-ctx.Done():
			return
		}
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		logger.Error(logging.Mongo, logging.LiveQuery, "change stream terminated", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
			"collection":         collection,
		})
	}
}

func translate(change changeEvent) (store.Event, bool) {
	doc := store.Document{ID: change.DocumentKey.ID}
	if change.FullDocument != nil {
		doc = toDocument(change.FullDocument)
	}

	switch change.OperationType {
	case "insert":
		return store.Event{Type: store.Added, Doc: doc}, true
	case "update", "replace":
		return store.Event{Type: store.Modified, Doc: doc}, true
	case "delete":
		return store.Event{Type: store.Removed, Doc: doc}, true
	}
	return store.Event{}, false
}

func filterToBSON(filters []store.Filter) bson.M {
	out := bson.M{}
	for _, f := range filters {
		switch f.Op {
		case store.OpEq:
			out[f.Field] = f.Value
		case store.OpNe:
			out[f.Field] = bson.M{"$ne": f.Value}
		}
	}
	return out
}

func toBSON(data map[string]any) bson.M {
	out := bson.M{}
	for k, v := range data {
		out[k] = v
	}
	return out
}

func toDocument(raw bson.M) store.Document {
	doc := store.Document{Data: make(map[string]any, len(raw))}
	for k, v := range raw {
		if k == "_id" {
			if id, ok := v.(string); ok {
				doc.ID = id
			}
			continue
		}
		doc.Data[k] = normalize(v)
	}
	return doc
}

// normalize converts bson driver types back to plain JSON-ish values.
func normalize(v any) any {
	switch typed := v.(type) {
	case primitive.A:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalize(item)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[k] = normalize(item)
		}
		return out
	case primitive.DateTime:
		return typed.Time()
	case int32:
		return int64(typed)
	default:
		return v
	}
}
