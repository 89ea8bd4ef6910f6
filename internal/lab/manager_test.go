package lab

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/store"
	"github.com/pastejet/pastejet/internal/store/memstore"
)

const testRoom = "ROOM42"

func newTestManager(t *testing.T, st store.Store, self string) (*Manager, *fakeFactory) {
	t.Helper()

	factory := newFakeFactory()
	m := NewManager(ManagerOptions{
		Channel: NewChannel(st, testRoom, logging.NewNop()),
		Factory: factory.New,
		Self:    self,
		Logger:  logging.NewNop(),
	})
	return m, factory
}

// pump feeds inbound signaling into the manager the way a session's dispatch
// loop would.
func pump(t *testing.T, ctx context.Context, st store.Store, m *Manager, self string) {
	t.Helper()

	ch := NewChannel(st, testRoom, logging.NewNop())
	sigs, cancel, err := ch.SubscribeInbound(ctx, self)
	require.NoError(t, err)
	t.Cleanup(cancel)

	go func() {
		for sig := range sigs {
			m.HandleSignal(ctx, sig)
		}
	}()
}

func signalCount(t *testing.T, st store.Store) int {
	t.Helper()

	docs, err := st.Find(context.Background(), store.RoomSignaling, store.Query{
		Filters: []store.Filter{store.Where("room_id", store.OpEq, testRoom)},
	})
	require.NoError(t, err)
	return len(docs)
}

func addSignal(t *testing.T, st store.Store, sig *domain.Signal) string {
	t.Helper()

	data, err := store.Encode(sig)
	require.NoError(t, err)
	id, err := st.Add(context.Background(), store.RoomSignaling, data)
	require.NoError(t, err)
	return id
}

func TestInitiateCallIsSingleShot(t *testing.T) {
	st := memstore.New()
	m, factory := newTestManager(t, st, "alice")
	ctx := context.Background()

	require.NoError(t, m.InitiateCall(ctx, "bob"))
	require.True(t, m.Initiated("bob"))

	// A second initiation while the offer is in flight must not create
	// another peer or another offer.
	require.NoError(t, m.InitiateCall(ctx, "bob"))

	assert.Equal(t, 1, factory.created("bob"))
	assert.Equal(t, 1, factory.peer("bob").offerCount())
	assert.Equal(t, 1, signalCount(t, st))
}

func TestOfferAnswerHandshake(t *testing.T) {
	st := memstore.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice, aliceFactory := newTestManager(t, st, "alice")
	bob, bobFactory := newTestManager(t, st, "bob")
	alice.SetAudioActive(true)
	bob.SetAudioActive(true)

	pump(t, ctx, st, alice, "alice")
	pump(t, ctx, st, bob, "bob")

	require.NoError(t, alice.InitiateCall(ctx, "bob"))

	require.Eventually(t, func() bool {
		bp := bobFactory.peer("alice")
		ap := aliceFactory.peer("bob")
		return bp != nil && len(bp.offersHandled()) == 1 &&
			ap != nil && len(ap.answersHandled()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Every message was consumed from the mailbox.
	require.Eventually(t, func() bool {
		return signalCount(t, st) == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.ElementsMatch(t, []string{"bob"}, alice.ActivePeers())
	assert.ElementsMatch(t, []string{"alice"}, bob.ActivePeers())
}

func TestCandidatesQueuedUntilRemoteDescription(t *testing.T) {
	st := memstore.New()
	m, factory := newTestManager(t, st, "bob")
	m.SetAudioActive(true)
	ctx := context.Background()

	mid := "0"
	first := domain.NewCandidateSignal(testRoom, "alice", "bob", domain.Candidate{Candidate: "cand-1", SDPMid: &mid})
	second := domain.NewCandidateSignal(testRoom, "alice", "bob", domain.Candidate{Candidate: "cand-2", SDPMid: &mid})
	first.ID = addSignal(t, st, first)
	second.ID = addSignal(t, st, second)

	m.HandleSignal(ctx, *first)
	m.HandleSignal(ctx, *second)

	// Queued, not applied, and still in the mailbox.
	peer := factory.peer("alice")
	require.NotNil(t, peer)
	assert.Empty(t, peer.addedCandidates())
	assert.Equal(t, 2, signalCount(t, st))

	offer := domain.NewOffer(testRoom, "alice", "bob", "sdp-offer")
	offer.ID = addSignal(t, st, offer)
	m.HandleSignal(ctx, *offer)

	// The offer flushes the queue in arrival order and consumes every
	// message, including the queued ones.
	applied := peer.addedCandidates()
	require.Len(t, applied, 2)
	assert.Equal(t, "cand-1", applied[0].Candidate)
	assert.Equal(t, "cand-2", applied[1].Candidate)

	// Only the outbound answer remains.
	docs, err := st.Find(ctx, store.RoomSignaling, store.Query{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	var out domain.Signal
	require.NoError(t, docs[0].Decode(&out))
	assert.Equal(t, domain.SignalAnswer, out.Kind)
	assert.Equal(t, "alice", out.To)
}

func TestCandidateAppliedImmediatelyOnceRemoteSet(t *testing.T) {
	st := memstore.New()
	m, factory := newTestManager(t, st, "bob")
	m.SetAudioActive(true)
	ctx := context.Background()

	offer := domain.NewOffer(testRoom, "alice", "bob", "sdp-offer")
	offer.ID = addSignal(t, st, offer)
	m.HandleSignal(ctx, *offer)

	cand := domain.NewCandidateSignal(testRoom, "alice", "bob", domain.Candidate{Candidate: "cand-late"})
	cand.ID = addSignal(t, st, cand)
	m.HandleSignal(ctx, *cand)

	applied := factory.peer("alice").addedCandidates()
	require.Len(t, applied, 1)
	assert.Equal(t, "cand-late", applied[0].Candidate)
}

func TestGlareOfferRejected(t *testing.T) {
	st := memstore.New()
	m, factory := newTestManager(t, st, "alice")
	m.SetAudioActive(true)
	ctx := context.Background()

	require.NoError(t, m.InitiateCall(ctx, "bob"))

	// Bob offers back before answering. Alice drops the offer without
	// touching her pending negotiation, but the message is consumed.
	offer := domain.NewOffer(testRoom, "bob", "alice", "sdp-from-bob")
	offer.ID = addSignal(t, st, offer)
	m.HandleSignal(ctx, *offer)

	assert.Empty(t, factory.peer("bob").offersHandled())
	assert.True(t, m.Initiated("bob"))

	docs, err := st.Find(ctx, store.RoomSignaling, store.Query{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	var remaining domain.Signal
	require.NoError(t, docs[0].Decode(&remaining))
	assert.Equal(t, "alice", remaining.From)
}

func TestStrayAnswerIgnored(t *testing.T) {
	st := memstore.New()
	m, factory := newTestManager(t, st, "alice")
	ctx := context.Background()

	answer := domain.NewAnswer(testRoom, "bob", "alice", "sdp-answer")
	answer.ID = addSignal(t, st, answer)
	m.HandleSignal(ctx, *answer)

	assert.Nil(t, factory.peer("bob"))
	assert.Equal(t, 0, signalCount(t, st))
}

func TestOfferTriggersLocalAudio(t *testing.T) {
	st := memstore.New()

	needAudio := 0
	factory := newFakeFactory()
	m := NewManager(ManagerOptions{
		Channel: NewChannel(st, testRoom, logging.NewNop()),
		Factory: factory.New,
		Self:    "bob",
		Logger:  logging.NewNop(),
	})
	m.onNeedAudio = func() {
		needAudio++
		m.SetAudioActive(true)
	}

	ctx := context.Background()
	offer := domain.NewOffer(testRoom, "alice", "bob", "sdp-offer")
	offer.ID = addSignal(t, st, offer)
	m.HandleSignal(ctx, *offer)

	assert.Equal(t, 1, needAudio)
	assert.True(t, m.AudioActive())
	require.Len(t, factory.peer("alice").offersHandled(), 1)

	// Once audio is up the callback does not fire again.
	second := domain.NewOffer(testRoom, "alice", "bob", "sdp-offer-2")
	second.ID = addSignal(t, st, second)
	m.HandleSignal(ctx, *second)
	assert.Equal(t, 1, needAudio)
}

func TestTeardownForgetsRemote(t *testing.T) {
	st := memstore.New()
	m, factory := newTestManager(t, st, "alice")
	ctx := context.Background()

	require.NoError(t, m.InitiateCall(ctx, "bob"))
	m.SetVolume("bob", 0.5)
	first := factory.peer("bob")

	// Connectivity loss reported by the peer itself.
	first.events.OnStateChange(ConnFailed)

	assert.True(t, first.isClosed())
	assert.False(t, m.Initiated("bob"))
	assert.Empty(t, m.ActivePeers())
	assert.Equal(t, 1.0, m.Volume("bob"))

	// A new call after teardown gets a fresh connection.
	require.NoError(t, m.InitiateCall(ctx, "bob"))
	assert.Equal(t, 2, factory.created("bob"))
}

func TestOfferAfterDisconnectCreatesFreshConnection(t *testing.T) {
	st := memstore.New()
	m, factory := newTestManager(t, st, "bob")
	m.SetAudioActive(true)
	ctx := context.Background()

	offer := domain.NewOffer(testRoom, "alice", "bob", "sdp-1")
	offer.ID = addSignal(t, st, offer)
	m.HandleSignal(ctx, *offer)
	factory.peer("alice").events.OnStateChange(ConnDisconnected)

	reoffer := domain.NewOffer(testRoom, "alice", "bob", "sdp-2")
	reoffer.ID = addSignal(t, st, reoffer)
	m.HandleSignal(ctx, *reoffer)

	assert.Equal(t, 2, factory.created("alice"))
	require.Len(t, factory.peer("alice").offersHandled(), 1)
}

func TestForcedMuteWinsOverLocalToggle(t *testing.T) {
	st := memstore.New()
	m, factory := newTestManager(t, st, "alice")
	ctx := context.Background()

	require.NoError(t, m.InitiateCall(ctx, "bob"))
	peer := factory.peer("bob")
	require.True(t, peer.outgoingEnabled())

	require.True(t, m.ToggleMute())
	assert.False(t, peer.outgoingEnabled())
	require.False(t, m.ToggleMute())
	assert.True(t, peer.outgoingEnabled())

	m.SetForcedMute(true)
	assert.True(t, m.Muted())
	assert.False(t, peer.outgoingEnabled())

	// The local toggle cannot override moderation.
	assert.True(t, m.ToggleMute())
	assert.False(t, peer.outgoingEnabled())

	// Lifting the forced mute restores the previous local choice, it
	// does not unmute.
	m.SetForcedMute(false)
	assert.False(t, m.Muted())
	assert.True(t, peer.outgoingEnabled())
}

func TestForcedMutePreservesExplicitLocalMute(t *testing.T) {
	st := memstore.New()
	m, _ := newTestManager(t, st, "alice")

	require.True(t, m.ToggleMute())
	m.SetForcedMute(true)
	m.SetForcedMute(false)
	assert.True(t, m.Muted())
}

func TestNewPeerStartsMutedWhenLocallyMuted(t *testing.T) {
	st := memstore.New()
	m, factory := newTestManager(t, st, "alice")
	ctx := context.Background()

	m.ToggleMute()
	require.NoError(t, m.InitiateCall(ctx, "bob"))
	assert.False(t, factory.peer("bob").outgoingEnabled())
}

func TestCloseAllClearsInitiatedSet(t *testing.T) {
	st := memstore.New()
	m, factory := newTestManager(t, st, "alice")
	ctx := context.Background()

	require.NoError(t, m.InitiateCall(ctx, "bob"))
	require.NoError(t, m.InitiateCall(ctx, "carol"))

	m.CloseAll()

	assert.Empty(t, m.ActivePeers())
	assert.False(t, m.Initiated("bob"))
	assert.False(t, m.Initiated("carol"))
	assert.True(t, factory.peer("bob").isClosed())
	assert.True(t, factory.peer("carol").isClosed())
}
