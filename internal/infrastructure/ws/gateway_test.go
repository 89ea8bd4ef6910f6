package ws

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/infrastructure/metrics"
	"github.com/pastejet/pastejet/internal/store"
	"github.com/pastejet/pastejet/internal/store/memstore"
)

func TestDocUser(t *testing.T) {
	userID, ok := docUser("ROOM42:alice", "ROOM42")
	assert.True(t, ok)
	assert.Equal(t, "alice", userID)

	// Deletes from other rooms reach the translator unfiltered and must
	// not be mistaken for a participant of this room.
	_, ok = docUser("OTHER9:carol", "ROOM42")
	assert.False(t, ok)

	_, ok = docUser("ROOM42", "ROOM42")
	assert.False(t, ok)
}

func TestForwardCursorsSkipsForeignRoomRemovals(t *testing.T) {
	st := memstore.New()
	g := &Gateway{store: st, logger: logging.NewNop(), metrics: metrics.New(prometheus.NewRegistry())}
	client := NewClient(nil, "alice", "ROOM42", "alice", nil, nil, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.forwardCursors(ctx, client)

	cursor, err := store.Encode(domain.Cursor{
		UserID:      "bob",
		DisplayName: "bob",
		Position:    domain.CursorPosition{Line: 1, Column: 1},
	})
	require.NoError(t, err)
	cursor["room_id"] = "ROOM42"
	require.NoError(t, st.Put(ctx, store.RoomCursors, "ROOM42:bob", cursor))

	select {
	case msg := <-client.Message:
		assert.Equal(t, CursorUpdate, msg.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("cursor update never delivered")
	}

	// A delete whose doc key belongs to another room must not surface as
	// a cursor-removed message here.
	removal := store.Event{Type: store.Removed, Doc: store.Document{ID: "OTHER9:carol"}}
	assert.Nil(t, translateCursorEvent(client, removal))
	assert.Nil(t, translatePresenceEvent(client, removal))

	ours := store.Event{Type: store.Removed, Doc: store.Document{ID: "ROOM42:bob"}}
	if msg := translateCursorEvent(client, ours); assert.NotNil(t, msg) {
		assert.Equal(t, CursorRemoved, msg.Type)
	}
	if msg := translatePresenceEvent(client, ours); assert.NotNil(t, msg) {
		assert.Equal(t, PresenceRemoved, msg.Type)
	}
}

func TestForwardCountsLiveSubscriptions(t *testing.T) {
	st := memstore.New()
	m := metrics.New(prometheus.NewRegistry())
	g := &Gateway{store: st, logger: logging.NewNop(), metrics: m}
	client := NewClient(nil, "alice", "ROOM42", "alice", nil, nil, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	g.forwardCursors(ctx, client)
	g.forwardPresence(ctx, client)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LiveSubscriptions))

	cancel()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.LiveSubscriptions) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
