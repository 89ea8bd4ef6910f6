package lab

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/infrastructure/metrics"
	"github.com/pastejet/pastejet/internal/store"
)

const (
	// sendTimeout bounds every fire-and-forget store write made outside a
	// caller-supplied context.
	sendTimeout = 5 * time.Second

	// DefaultAutosave is how often the owner's session snapshots the room
	// content into version history.
	DefaultAutosave = 5 * time.Minute
)

// SessionOptions configures a participant's live attachment to a room.
type SessionOptions struct {
	Store       store.Store
	RoomID      string
	UserID      string
	DisplayName string
	Factory     PeerFactory
	Logger      logging.Logger
	Metrics     *metrics.Metrics

	// Heartbeat defaults to DefaultHeartbeat when zero.
	Heartbeat time.Duration
	// Autosave defaults to DefaultAutosave when zero. Only the room owner
	// runs the autosave timer.
	Autosave time.Duration

	// OnContent fires with the new buffer whenever a remote edit lands.
	OnContent func(text string)
	// OnClosed fires once if the room is deactivated or deleted while the
	// session is running.
	OnClosed func()
}

// Session is one participant's live attachment to a room: text sync, cursor
// publishing, presence, signaling, and peer audio, all serialized through a
// single dispatch goroutine. Create with NewSession, then Start; Stop tears
// everything down in order (timers, then peers, then remote records).
type Session struct {
	store   store.Store
	roomID  string
	self    string
	logger  logging.Logger
	metrics *metrics.Metrics

	channel  *Channel
	manager  *Manager
	tracker  *Tracker
	text     *TextSync
	cursor   *CursorPublisher
	autosave time.Duration

	onClosed func()

	mu        sync.Mutex
	owner     bool
	lastSaved string
	started   bool
	closed    bool

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSession(opts SessionOptions) *Session {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.Autosave <= 0 {
		opts.Autosave = DefaultAutosave
	}

	s := &Session{
		store:    opts.Store,
		roomID:   opts.RoomID,
		self:     opts.UserID,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		autosave: opts.Autosave,
		onClosed: opts.OnClosed,
	}

	s.channel = NewChannel(opts.Store, opts.RoomID, opts.Logger)
	s.text = NewTextSync(opts.Store, opts.RoomID, opts.Logger, opts.OnContent)
	s.tracker = NewTracker(opts.Store, opts.RoomID, opts.UserID, opts.DisplayName, opts.Heartbeat, opts.Logger)
	s.cursor = NewCursorPublisher(opts.Store, opts.RoomID, opts.UserID, opts.DisplayName)
	s.manager = NewManager(ManagerOptions{
		Channel:     s.channel,
		Factory:     opts.Factory,
		Self:        opts.UserID,
		Logger:      opts.Logger,
		Metrics:     opts.Metrics,
		OnNeedAudio: s.answerWithAudio,
		OnTeardown:  nil,
	})

	return s
}

// Start loads the room, registers presence, and launches the dispatch loop.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	s.started = true
	s.mu.Unlock()

	doc, err := s.store.Get(ctx, store.Rooms, s.roomID)
	if err != nil {
		if err == store.ErrNotFound {
			return domain.ErrRoomNotFound
		}
		return fmt.Errorf("load room: %w", err)
	}

	var room domain.Room
	if err := doc.Decode(&room); err != nil {
		return fmt.Errorf("decode room: %w", err)
	}
	if !room.Active {
		return domain.ErrRoomInactive
	}

	s.mu.Lock()
	s.owner = room.IsOwner(s.self)
	s.lastSaved = room.Content
	s.mu.Unlock()
	s.text.Seed(room.Content)
	s.manager.SetForcedMute(room.IsMuted(s.self))

	runCtx, cancel := context.WithCancel(context.Background())

	sigCh, sigCancel, err := s.channel.SubscribeInbound(runCtx, s.self)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe signaling: %w", err)
	}

	presCh, presCancel, err := s.tracker.Subscribe(runCtx)
	if err != nil {
		sigCancel()
		cancel()
		return fmt.Errorf("subscribe presence: %w", err)
	}

	roomCh, roomCancel, err := s.subscribeRoom(runCtx)
	if err != nil {
		presCancel()
		sigCancel()
		cancel()
		return fmt.Errorf("subscribe room: %w", err)
	}

	if err := s.tracker.Start(ctx); err != nil {
		roomCancel()
		presCancel()
		sigCancel()
		cancel()
		return fmt.Errorf("start presence: %w", err)
	}

	s.cancel = cancel
	s.done = make(chan struct{})
	if s.metrics != nil {
		s.metrics.ActiveSessions.Inc()
	}

	go s.dispatch(runCtx, sigCh, presCh, roomCh, func() {
		roomCancel()
		presCancel()
		sigCancel()
	})

	s.logger.Info(logging.Lab, logging.LiveQuery, "session started", map[logging.ExtraKey]any{
		logging.RoomID: s.roomID,
	})
	return nil
}

func (s *Session) subscribeRoom(ctx context.Context) (<-chan store.Event, func(), error) {
	sub, err := s.store.Subscribe(ctx, store.Rooms, store.Query{
		Filters: []store.Filter{
			store.Where("room_id", store.OpEq, s.roomID),
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return sub.Events(), sub.Close, nil
}

// dispatch serializes every event source for this room. Nothing else touches
// the text buffer or the peer table concurrently with it except the public
// methods, which go through the manager's and text sync's own locks.
func (s *Session) dispatch(ctx context.Context, sigCh <-chan domain.Signal, presCh <-chan PresenceEvent, roomCh <-chan store.Event, unsubscribe func()) {
	defer close(s.done)
	defer unsubscribe()

	ticker := time.NewTicker(s.autosave)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case sig, ok := <-sigCh:
			if !ok {
				return
			}
			s.manager.HandleSignal(ctx, sig)

		case ev, ok := <-presCh:
			if !ok {
				return
			}
			s.handlePresence(ctx, ev)

		case ev, ok := <-roomCh:
			if !ok {
				return
			}
			if s.handleRoomEvent(ev) {
				return
			}

		case <-ticker.C:
			s.maybeAutosave(ctx)
		}
	}
}

func (s *Session) handlePresence(ctx context.Context, ev PresenceEvent) {
	remote := ev.Presence.UserID
	if remote == "" || remote == s.self {
		return
	}

	if ev.Removed {
		s.manager.Teardown(remote)
		return
	}

	// A remote turning audio on while ours is on is the sole trigger for
	// dialing out. The initiated set keeps heartbeat updates from redialing.
	if ev.Presence.AudioActive && s.manager.AudioActive() && !s.manager.Initiated(remote) {
		if err := s.manager.InitiateCall(ctx, remote); err != nil {
			s.logger.Error(logging.Lab, logging.PeerAudio, "initiate call failed", map[logging.ExtraKey]any{
				logging.RoomID:     s.roomID,
				logging.RemotePeer: remote,
				logging.ErrorMessage: err.Error(),
			})
		}
	}
}

// handleRoomEvent returns true when the room is gone and the loop must exit.
// Delete events arrive unfiltered on some store backends, so the doc ID must
// be checked before treating a Removed event as this room's deletion.
func (s *Session) handleRoomEvent(ev store.Event) bool {
	if ev.Type == store.Removed {
		if ev.Doc.ID != s.roomID {
			return false
		}
		s.roomClosed()
		return true
	}

	var room domain.Room
	if err := ev.Doc.Decode(&room); err != nil {
		s.logger.Warn(logging.Lab, logging.LiveQuery, "bad room event", map[logging.ExtraKey]any{
			logging.RoomID: s.roomID,
		})
		return false
	}

	if !room.Active {
		s.roomClosed()
		return true
	}

	s.text.ApplyRemote(room.Content)
	s.manager.SetForcedMute(room.IsMuted(s.self))
	return false
}

func (s *Session) roomClosed() {
	s.logger.Info(logging.Lab, logging.LiveQuery, "room closed", map[logging.ExtraKey]any{
		logging.RoomID: s.roomID,
	})
	if s.onClosed != nil {
		s.onClosed()
	}
}

func (s *Session) maybeAutosave(ctx context.Context) {
	s.mu.Lock()
	owner := s.owner
	last := s.lastSaved
	s.mu.Unlock()

	if !owner {
		return
	}
	content := s.text.Local()
	if content == last {
		return
	}

	saveCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	version := domain.Version{
		RoomID:    s.roomID,
		Content:   content,
		SavedBy:   s.self,
		Timestamp: time.Now().UTC(),
	}
	data, err := store.Encode(version)
	if err == nil {
		_, err = s.store.Add(saveCtx, store.RoomVersions, data)
	}
	if err != nil {
		s.logger.Warn(logging.Lab, logging.TextSync, "autosave failed", map[logging.ExtraKey]any{
			logging.RoomID:       s.roomID,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	s.mu.Lock()
	s.lastSaved = content
	s.mu.Unlock()
}

// answerWithAudio runs when an offer arrives before local media started:
// accepting the call implies turning our own audio on.
func (s *Session) answerWithAudio() {
	s.manager.SetAudioActive(true)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := s.tracker.SetAudioActive(ctx, true); err != nil {
			s.logger.Warn(logging.Lab, logging.Presence, "audio presence update failed", map[logging.ExtraKey]any{
				logging.RoomID: s.roomID,
			})
		}
	}()
}

// StartAudio turns local audio on and dials every participant whose audio is
// already active.
func (s *Session) StartAudio(ctx context.Context) error {
	s.manager.SetAudioActive(true)
	if err := s.tracker.SetAudioActive(ctx, true); err != nil {
		return fmt.Errorf("publish audio state: %w", err)
	}

	remotes, err := s.tracker.List(ctx)
	if err != nil {
		return fmt.Errorf("list participants: %w", err)
	}
	for _, p := range remotes {
		if !p.AudioActive || s.manager.Initiated(p.UserID) {
			continue
		}
		if err := s.manager.InitiateCall(ctx, p.UserID); err != nil {
			s.logger.Error(logging.Lab, logging.PeerAudio, "initiate call failed", map[logging.ExtraKey]any{
				logging.RoomID:       s.roomID,
				logging.RemotePeer:   p.UserID,
				logging.ErrorMessage: err.Error(),
			})
		}
	}
	return nil
}

// StopAudio hangs up every call and publishes the inactive state.
func (s *Session) StopAudio(ctx context.Context) error {
	s.manager.CloseAll()
	s.manager.SetAudioActive(false)
	if err := s.tracker.SetAudioActive(ctx, false); err != nil {
		return fmt.Errorf("publish audio state: %w", err)
	}
	return nil
}

// UpdateContent applies a local edit and propagates it to the room document.
func (s *Session) UpdateContent(ctx context.Context, text string) {
	s.text.SetLocal(ctx, text)
}

// Content returns the current buffer.
func (s *Session) Content() string {
	return s.text.Local()
}

// UpdateCursor publishes the caret position derived from the byte offset into
// the current buffer.
func (s *Session) UpdateCursor(ctx context.Context, offset int) error {
	return s.cursor.Publish(ctx, s.text.Local(), offset)
}

// ToggleMute flips the local mute and reports the resulting state. It is a
// no-op while the owner has this participant force-muted.
func (s *Session) ToggleMute() bool {
	return s.manager.ToggleMute()
}

// Muted reports the effective mute state.
func (s *Session) Muted() bool {
	return s.manager.Muted()
}

// SetVolume adjusts playback gain for one remote participant.
func (s *Session) SetVolume(remote string, volume float64) {
	s.manager.SetVolume(remote, volume)
}

// ActivePeers lists remotes with a live audio connection.
func (s *Session) ActivePeers() []string {
	return s.manager.ActivePeers()
}

// Stop tears the session down: stop timers and subscriptions, close peer
// connections, then best-effort delete of our presence and cursor records.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.closed || !s.started {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}

	s.manager.CloseAll()
	s.tracker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := s.cursor.Clear(ctx); err != nil && err != store.ErrNotFound {
		s.logger.Warn(logging.Lab, logging.Presence, "cursor cleanup failed", map[logging.ExtraKey]any{
			logging.RoomID: s.roomID,
		})
	}

	if s.metrics != nil {
		s.metrics.ActiveSessions.Dec()
	}
	s.logger.Info(logging.Lab, logging.LiveQuery, "session stopped", map[logging.ExtraKey]any{
		logging.RoomID: s.roomID,
	})
}
