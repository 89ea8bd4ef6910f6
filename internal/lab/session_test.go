package lab

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/store"
	"github.com/pastejet/pastejet/internal/store/memstore"
)

func putRoom(t *testing.T, st store.Store, owner string) *domain.Room {
	t.Helper()

	room := &domain.Room{
		ID:         testRoom,
		Name:       "demo",
		Language:   "javascript",
		Content:    "// hello\n",
		Active:     true,
		MutedUsers: []string{},
		CreatedBy:  owner,
		CreatedAt:  time.Now().UTC(),
	}
	data, err := store.Encode(room)
	require.NoError(t, err)
	require.NoError(t, st.Put(context.Background(), store.Rooms, room.ID, data))
	return room
}

func putPresence(t *testing.T, st store.Store, userID string, audioActive bool) {
	t.Helper()

	data, err := store.Encode(domain.Presence{
		UserID:      userID,
		DisplayName: userID,
		AudioActive: audioActive,
		LastActive:  time.Now().UTC(),
	})
	require.NoError(t, err)
	data["room_id"] = testRoom
	require.NoError(t, st.Put(context.Background(), store.RoomPresence, presenceDocID(testRoom, userID), data))
}

func startTestSession(t *testing.T, st store.Store, userID string, tweak func(*SessionOptions)) (*Session, *fakeFactory) {
	t.Helper()

	factory := newFakeFactory()
	opts := SessionOptions{
		Store:       st,
		RoomID:      testRoom,
		UserID:      userID,
		DisplayName: userID,
		Factory:     factory.New,
		Logger:      logging.NewNop(),
		Heartbeat:   time.Hour,
	}
	if tweak != nil {
		tweak(&opts)
	}

	s := NewSession(opts)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)
	return s, factory
}

func TestSessionSyncsContentBetweenParticipants(t *testing.T) {
	st := memstore.New()
	putRoom(t, st, "alice")
	ctx := context.Background()

	var bobSaw atomic.Value
	alice, _ := startTestSession(t, st, "alice", nil)
	bob, _ := startTestSession(t, st, "bob", func(o *SessionOptions) {
		o.OnContent = func(text string) { bobSaw.Store(text) }
	})

	assert.Equal(t, "// hello\n", bob.Content())

	alice.UpdateContent(ctx, "const x = 1\n")

	require.Eventually(t, func() bool {
		return bob.Content() == "const x = 1\n"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "const x = 1\n", bobSaw.Load())

	// The writer does not get its own edit echoed back.
	assert.Equal(t, "const x = 1\n", alice.Content())
}

func TestSessionPublishesCursor(t *testing.T) {
	st := memstore.New()
	putRoom(t, st, "alice")
	ctx := context.Background()

	alice, _ := startTestSession(t, st, "alice", nil)
	alice.UpdateContent(ctx, "line one\nline two\n")
	require.NoError(t, alice.UpdateCursor(ctx, 13))

	doc, err := st.Get(ctx, store.RoomCursors, cursorDocID(testRoom, "alice"))
	require.NoError(t, err)

	var cur domain.Cursor
	require.NoError(t, doc.Decode(&cur))
	assert.Equal(t, 2, cur.Position.Line)
	assert.Equal(t, 5, cur.Position.Column)
}

func TestSessionDialsAudioActivePeers(t *testing.T) {
	st := memstore.New()
	putRoom(t, st, "alice")
	ctx := context.Background()

	putPresence(t, st, "bob", true)
	putPresence(t, st, "carol", false)

	alice, factory := startTestSession(t, st, "alice", nil)
	require.NoError(t, alice.StartAudio(ctx))

	// Only the audio-active participant gets a call.
	require.Equal(t, 1, factory.created("bob"))
	assert.Equal(t, 0, factory.created("carol"))

	docs, err := st.Find(ctx, store.RoomSignaling, store.Query{
		Filters: []store.Filter{store.Where("to", store.OpEq, "bob")},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	var offer domain.Signal
	require.NoError(t, docs[0].Decode(&offer))
	require.Equal(t, domain.SignalOffer, offer.Kind)

	// Bob answers through the mailbox; the session applies it.
	answer := domain.NewAnswer(testRoom, "bob", "alice", "sdp-answer")
	data, err := store.Encode(answer)
	require.NoError(t, err)
	_, err = st.Add(ctx, store.RoomSignaling, data)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(factory.peer("bob").answersHandled()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"bob"}, alice.ActivePeers())
}

func TestSessionDialsWhenPeerTurnsAudioOn(t *testing.T) {
	st := memstore.New()
	putRoom(t, st, "alice")
	ctx := context.Background()

	alice, factory := startTestSession(t, st, "alice", nil)
	require.NoError(t, alice.StartAudio(ctx))
	require.Equal(t, 0, factory.created("bob"))

	putPresence(t, st, "bob", true)

	require.Eventually(t, func() bool {
		return factory.created("bob") == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Heartbeat refreshes of the same record must not redial.
	putPresence(t, st, "bob", true)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, factory.created("bob"))
}

func TestSessionAnswersIncomingOfferAndJoinsAudio(t *testing.T) {
	st := memstore.New()
	putRoom(t, st, "alice")
	ctx := context.Background()

	_, factory := startTestSession(t, st, "bob", nil)

	offer := domain.NewOffer(testRoom, "alice", "bob", "sdp-offer")
	data, err := store.Encode(offer)
	require.NoError(t, err)
	_, err = st.Add(ctx, store.RoomSignaling, data)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		p := factory.peer("alice")
		return p != nil && len(p.offersHandled()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Accepting the call switched local audio on and published it.
	require.Eventually(t, func() bool {
		doc, err := st.Get(ctx, store.RoomPresence, presenceDocID(testRoom, "bob"))
		if err != nil {
			return false
		}
		var p domain.Presence
		if err := doc.Decode(&p); err != nil {
			return false
		}
		return p.AudioActive
	}, 2*time.Second, 10*time.Millisecond)

	docs, err := st.Find(ctx, store.RoomSignaling, store.Query{
		Filters: []store.Filter{store.Where("to", store.OpEq, "alice")},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	var answer domain.Signal
	require.NoError(t, docs[0].Decode(&answer))
	assert.Equal(t, domain.SignalAnswer, answer.Kind)
}

func TestSessionTearsDownOnPresenceRemoval(t *testing.T) {
	st := memstore.New()
	putRoom(t, st, "alice")
	ctx := context.Background()

	putPresence(t, st, "bob", true)
	alice, factory := startTestSession(t, st, "alice", nil)
	require.NoError(t, alice.StartAudio(ctx))
	require.Equal(t, 1, factory.created("bob"))

	require.NoError(t, st.Delete(ctx, store.RoomPresence, presenceDocID(testRoom, "bob")))

	require.Eventually(t, func() bool {
		return factory.peer("bob").isClosed()
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, alice.ActivePeers())
}

func TestSessionFollowsModerationMutes(t *testing.T) {
	st := memstore.New()
	putRoom(t, st, "alice")
	ctx := context.Background()

	bob, _ := startTestSession(t, st, "bob", nil)
	require.False(t, bob.Muted())

	mod := NewModerator(st, testRoom)
	require.NoError(t, mod.ToggleMuteUser(ctx, "alice", "bob"))

	require.Eventually(t, bob.Muted, 2*time.Second, 10*time.Millisecond)
	assert.True(t, bob.ToggleMute())

	require.NoError(t, mod.ToggleMuteUser(ctx, "alice", "bob"))
	require.Eventually(t, func() bool {
		return !bob.Muted()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionOwnerAutosavesVersions(t *testing.T) {
	st := memstore.New()
	putRoom(t, st, "alice")
	ctx := context.Background()

	alice, _ := startTestSession(t, st, "alice", func(o *SessionOptions) {
		o.Autosave = 30 * time.Millisecond
	})
	alice.UpdateContent(ctx, "saved content")

	require.Eventually(t, func() bool {
		docs, err := st.Find(ctx, store.RoomVersions, store.Query{
			Filters: []store.Filter{store.Where("room_id", store.OpEq, testRoom)},
		})
		return err == nil && len(docs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	docs, err := st.Find(ctx, store.RoomVersions, store.Query{})
	require.NoError(t, err)
	var v domain.Version
	require.NoError(t, docs[0].Decode(&v))
	assert.Equal(t, "saved content", v.Content)
	assert.Equal(t, "alice", v.SavedBy)

	// Unchanged content is not saved again.
	time.Sleep(150 * time.Millisecond)
	docs, err = st.Find(ctx, store.RoomVersions, store.Query{})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestSessionNonOwnerDoesNotAutosave(t *testing.T) {
	st := memstore.New()
	putRoom(t, st, "alice")
	ctx := context.Background()

	bob, _ := startTestSession(t, st, "bob", func(o *SessionOptions) {
		o.Autosave = 30 * time.Millisecond
	})
	bob.UpdateContent(ctx, "bob's edit")

	time.Sleep(150 * time.Millisecond)
	docs, err := st.Find(ctx, store.RoomVersions, store.Query{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSessionStopDeletesRemoteRecords(t *testing.T) {
	st := memstore.New()
	putRoom(t, st, "alice")
	ctx := context.Background()

	alice, factory := startTestSession(t, st, "alice", nil)
	require.NoError(t, alice.UpdateCursor(ctx, 0))
	require.NoError(t, alice.StartAudio(ctx))

	putPresence(t, st, "bob", true)
	require.Eventually(t, func() bool {
		return factory.created("bob") == 1
	}, 2*time.Second, 10*time.Millisecond)

	alice.Stop()

	_, err := st.Get(ctx, store.RoomPresence, presenceDocID(testRoom, "alice"))
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Get(ctx, store.RoomCursors, cursorDocID(testRoom, "alice"))
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.True(t, factory.peer("bob").isClosed())
}

func TestSessionStartRejectsInactiveRoom(t *testing.T) {
	st := memstore.New()
	room := putRoom(t, st, "alice")
	ctx := context.Background()

	require.NoError(t, st.Update(ctx, store.Rooms, room.ID, map[string]any{"is_active": false}))

	s := NewSession(SessionOptions{
		Store:       st,
		RoomID:      testRoom,
		UserID:      "bob",
		DisplayName: "bob",
		Factory:     newFakeFactory().New,
		Logger:      logging.NewNop(),
	})
	assert.ErrorIs(t, s.Start(ctx), domain.ErrRoomInactive)
}

func TestSessionSignalsClosureWhenRoomDeactivated(t *testing.T) {
	st := memstore.New()
	room := putRoom(t, st, "alice")
	ctx := context.Background()

	var closed atomic.Bool
	_, _ = startTestSession(t, st, "bob", func(o *SessionOptions) {
		o.OnClosed = func() { closed.Store(true) }
	})

	require.NoError(t, st.Update(ctx, store.Rooms, room.ID, map[string]any{"is_active": false}))

	require.Eventually(t, closed.Load, 2*time.Second, 10*time.Millisecond)
}

// broadcastDeleteStore mimics the mongo store's change-stream semantics:
// adds and modifies honor the query filter, deletes are forwarded for the
// whole collection because the deleted document is no longer there to match.
type broadcastDeleteStore struct {
	store.Store
}

func (b broadcastDeleteStore) Subscribe(ctx context.Context, collection string, q store.Query) (store.Subscription, error) {
	filtered, err := b.Store.Subscribe(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	all, err := b.Store.Subscribe(ctx, collection, store.Query{})
	if err != nil {
		filtered.Close()
		return nil, err
	}

	sub := &broadcastSub{events: make(chan store.Event, 64)}
	sub.closeFn = func() {
		filtered.Close()
		all.Close()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for ev := range filtered.Events() {
			if ev.Type == store.Removed {
				continue
			}
			sub.events <- ev
		}
	}()
	go func() {
		defer wg.Done()
		for ev := range all.Events() {
			if ev.Type != store.Removed {
				continue
			}
			sub.events <- ev
		}
	}()
	go func() {
		wg.Wait()
		close(sub.events)
	}()

	return sub, nil
}

type broadcastSub struct {
	events  chan store.Event
	closeFn func()
	once    sync.Once
}

func (s *broadcastSub) Events() <-chan store.Event { return s.events }

func (s *broadcastSub) Close() { s.once.Do(s.closeFn) }

func TestSessionIgnoresOtherRoomDeletion(t *testing.T) {
	st := broadcastDeleteStore{Store: memstore.New()}
	room := putRoom(t, st, "alice")
	ctx := context.Background()

	other, err := store.Encode(&domain.Room{ID: "OTHER9", Name: "elsewhere", Active: true})
	require.NoError(t, err)
	require.NoError(t, st.Put(ctx, store.Rooms, "OTHER9", other))

	var closed atomic.Bool
	_, _ = startTestSession(t, st, "bob", func(o *SessionOptions) {
		o.OnClosed = func() { closed.Store(true) }
	})

	require.NoError(t, st.Delete(ctx, store.Rooms, "OTHER9"))

	time.Sleep(100 * time.Millisecond)
	require.False(t, closed.Load(), "deleting an unrelated room closed this session")

	// The subscription must still be live for this room's own deletion.
	require.NoError(t, st.Delete(ctx, store.Rooms, room.ID))
	require.Eventually(t, closed.Load, 2*time.Second, 10*time.Millisecond)
}

func TestSessionIgnoresOtherRoomPresenceRemoval(t *testing.T) {
	st := broadcastDeleteStore{Store: memstore.New()}
	putRoom(t, st, "alice")
	ctx := context.Background()

	putPresence(t, st, "bob", true)

	carol, err := store.Encode(domain.Presence{UserID: "carol", AudioActive: true, LastActive: time.Now().UTC()})
	require.NoError(t, err)
	carol["room_id"] = "OTHER9"
	require.NoError(t, st.Put(ctx, store.RoomPresence, "OTHER9:carol", carol))

	alice, factory := startTestSession(t, st, "alice", nil)
	require.NoError(t, alice.StartAudio(ctx))
	require.Equal(t, 1, factory.created("bob"))

	require.NoError(t, st.Delete(ctx, store.RoomPresence, "OTHER9:carol"))

	time.Sleep(100 * time.Millisecond)
	require.False(t, factory.peer("bob").isClosed(), "another room's departure tore down a local peer")

	require.NoError(t, st.Delete(ctx, store.RoomPresence, presenceDocID(testRoom, "bob")))
	require.Eventually(t, func() bool {
		return factory.peer("bob").isClosed()
	}, 2*time.Second, 10*time.Millisecond)
}
