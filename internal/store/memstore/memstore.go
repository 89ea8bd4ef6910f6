// Package memstore is the in-memory store.Store used by tests and
// single-node development runs. Subscriptions are dispatched synchronously in
// mutation order, which makes delivery order deterministic.
package memstore

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pastejet/pastejet/internal/store"
)

const eventBuffer = 256

type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
	order       map[string][]string // insertion order per collection
	subs        map[*subscription]struct{}
}

func New() *Store {
	return &Store{
		collections: make(map[string]map[string]map[string]any),
		order:       make(map[string][]string),
		subs:        make(map[*subscription]struct{}),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Put(ctx context.Context, collection, id string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[collection]
	if !ok {
		col = make(map[string]map[string]any)
		s.collections[collection] = col
	}

	_, existed := col[id]
	col[id] = deepCopy(data)
	if !existed {
		s.order[collection] = append(s.order[collection], id)
	}

	eventType := store.Added
	if existed {
		eventType = store.Modified
	}
	s.dispatch(collection, store.Event{
		Type: eventType,
		Doc:  store.Document{ID: id, Data: deepCopy(data)},
	})

	return nil
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	return id, s.Put(ctx, collection, id, data)
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.collections[collection][id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}

	return store.Document{ID: id, Data: deepCopy(data)}, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.collections[collection][id]
	if !ok {
		return store.ErrNotFound
	}

	maps.Copy(data, deepCopy(fields))

	s.dispatch(collection, store.Event{
		Type: store.Modified,
		Doc:  store.Document{ID: id, Data: deepCopy(data)},
	})

	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[collection]
	if !ok {
		return store.ErrNotFound
	}
	old, existed := col[id]
	if !existed {
		return store.ErrNotFound
	}
	delete(col, id)

	ids := s.order[collection]
	for i, existing := range ids {
		if existing == id {
			s.order[collection] = append(ids[:i], ids[i+1:]...)
			break
		}
	}

	s.dispatch(collection, store.Event{
		Type: store.Removed,
		Doc:  store.Document{ID: id, Data: deepCopy(old)},
	})

	return nil
}

func (s *Store) Find(ctx context.Context, collection string, q store.Query) ([]store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.findLocked(collection, q), nil
}

func (s *Store) findLocked(collection string, q store.Query) []store.Document {
	col := s.collections[collection]

	var docs []store.Document
	for _, id := range s.order[collection] {
		data, ok := col[id]
		if !ok || !matches(data, q.Filters) {
			continue
		}
		docs = append(docs, store.Document{ID: id, Data: deepCopy(data)})
	}

	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			less := lessValues(docs[i].Data[q.OrderBy], docs[j].Data[q.OrderBy])
			if q.Descending {
				return !less
			}
			return less
		})
	}

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}

	return docs
}

func (s *Store) Subscribe(ctx context.Context, collection string, q store.Query) (store.Subscription, error) {
	sub := &subscription{
		store:      s,
		collection: collection,
		query:      q,
		events:     make(chan store.Event, eventBuffer),
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	// Initial snapshot before any live event
	for _, doc := range s.findLocked(collection, q) {
		sub.send(store.Event{Type: store.Added, Doc: doc})
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// dispatch is called with s.mu held.
func (s *Store) dispatch(collection string, ev store.Event) {
	for sub := range s.subs {
		if sub.collection != collection {
			continue
		}
		// Removed events are matched against the final state of the document
		if !matches(ev.Doc.Data, sub.query.Filters) {
			continue
		}
		sub.send(ev)
	}
}

type subscription struct {
	store      *Store
	collection string
	query      store.Query
	events     chan store.Event
	done       chan struct{}
	closeOnce  sync.Once
}

func (s *subscription) Events() <-chan store.Event {
	return s.events
}

func (s *subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.store.mu.Lock()
		delete(s.store.subs, s)
		s.store.mu.Unlock()
		close(s.events)
	})
}

func (s *subscription) send(ev store.Event) {
	select {
	case <-s.done:
	case s.events <- ev:
	default:
		// Slow consumer: drop rather than deadlock the store
	}
}

func matches(data map[string]any, filters []store.Filter) bool {
	for _, f := range filters {
		v, ok := data[f.Field]
		switch f.Op {
		case store.OpEq:
			if !ok || !equalValues(v, f.Value) {
				return false
			}
		case store.OpNe:
			if ok && equalValues(v, f.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return a == b
}

func lessValues(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af < bf
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	return aok && bok && as < bs
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func deepCopy(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return deepCopy(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
