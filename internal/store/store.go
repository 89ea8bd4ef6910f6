// Package store abstracts the document database the application runs on:
// named collections of JSON-like documents with CRUD, filtered queries and
// live subscriptions. The mongostore implementation backs production, the
// memstore implementation backs tests and single-node development.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// Collection names. Subcollections of the original data model are flattened
// into top-level collections carrying a room_id field.
const (
	Rooms          = "rooms"
	RoomMembers    = "room_members"
	RoomPresence   = "room_presence"
	RoomCursors    = "room_cursors"
	RoomSignaling  = "room_signaling"
	RoomMessages   = "room_messages"
	RoomVersions   = "room_version_history"
	RoomExecutions = "room_execution_results"
	Pastes         = "pastes"
	Clipboards     = "clipboards"
	Users          = "users"
)

var ErrNotFound = errors.New("document not found")

type Document struct {
	ID   string
	Data map[string]any
}

// Decode unmarshals the document data into dst via a JSON round trip.
func (d Document) Decode(dst any) error {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// Encode converts a struct into the map form documents are written as.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}

	return data, nil
}

type EventType int

const (
	Added EventType = iota
	Modified
	Removed
)

func (t EventType) String() string {
	switch t {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	}
	return "unknown"
}

// Event is one snapshot delta on a subscription. Removed events carry only
// the document ID.
type Event struct {
	Type EventType
	Doc  Document
}

type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Subscription is a live query. The Events channel stays open until Close is
// called or the subscribe context is cancelled. Existing matches are
// delivered first as Added events, so consumers see an initial snapshot
// followed by deltas, and redelivery after reconnects means handlers must be
// idempotent.
type Subscription interface {
	Events() <-chan Event
	Close()
}

type Store interface {
	// Put creates or fully replaces the document with the given ID.
	Put(ctx context.Context, collection, id string, data map[string]any) error

	// Add creates a document with a generated ID and returns it.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)

	// Get returns ErrNotFound when no document has that ID.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Update merges the given fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Delete returns ErrNotFound when the document does not exist.
	Delete(ctx context.Context, collection, id string) error

	Find(ctx context.Context, collection string, q Query) ([]Document, error)

	Subscribe(ctx context.Context, collection string, q Query) (Subscription, error)
}
