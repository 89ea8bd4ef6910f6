package lab

import (
	"context"
	"fmt"
	"time"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/store"
)

// DefaultHeartbeat is how often the local presence record is refreshed.
const DefaultHeartbeat = 30 * time.Second

func presenceDocID(roomID, userID string) string {
	return fmt.Sprintf("%s:%s", roomID, userID)
}

// Tracker maintains this participant's presence record and watches everyone
// else's. Presence has no TTL: if the process dies the record stays until
// someone cleans the room up. That failure mode is accepted.
type Tracker struct {
	store       store.Store
	roomID      string
	userID      string
	displayName string
	interval    time.Duration
	logger      logging.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewTracker(st store.Store, roomID, userID, displayName string, interval time.Duration, logger logging.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultHeartbeat
	}
	return &Tracker{
		store:       st,
		roomID:      roomID,
		userID:      userID,
		displayName: displayName,
		interval:    interval,
		logger:      logger,
	}
}

// Start upserts the presence record and begins the heartbeat.
func (t *Tracker) Start(ctx context.Context) error {
	if err := t.upsert(ctx, false); err != nil {
		return fmt.Errorf("create presence: %w", err)
	}

	heartbeatCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})

	go t.heartbeat(heartbeatCtx)

	return nil
}

func (t *Tracker) heartbeat(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			touchCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			err := t.store.Update(touchCtx, store.RoomPresence, presenceDocID(t.roomID, t.userID), map[string]any{
				"last_active": time.Now().UTC().Format(time.RFC3339Nano),
			})
			cancel()
			if err != nil {
				t.logger.Warn(logging.Lab, logging.Presence, "presence heartbeat failed", map[logging.ExtraKey]any{
					logging.ErrorMessage: err.Error(),
					logging.RoomID:       t.roomID,
				})
			}
		}
	}
}

// SetAudioActive flips the audio flag on the presence record. Other
// participants key call initiation off this.
func (t *Tracker) SetAudioActive(ctx context.Context, active bool) error {
	return t.upsert(ctx, active)
}

func (t *Tracker) upsert(ctx context.Context, audioActive bool) error {
	data, err := store.Encode(domain.Presence{
		UserID:      t.userID,
		DisplayName: t.displayName,
		AudioActive: audioActive,
		LastActive:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	data["room_id"] = t.roomID

	return t.store.Put(ctx, store.RoomPresence, presenceDocID(t.roomID, t.userID), data)
}

// Stop ends the heartbeat and deletes the presence record. Deletion is best
// effort.
func (t *Tracker) Stop() {
	if t.cancel != nil {
		t.cancel()
		<-t.done
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := t.store.Delete(ctx, store.RoomPresence, presenceDocID(t.roomID, t.userID)); err != nil {
		t.logger.Warn(logging.Lab, logging.Presence, "failed to delete presence on leave", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
			logging.RoomID:       t.roomID,
		})
	}
}

// PresenceEvent is one remote participant's presence snapshot.
type PresenceEvent struct {
	Removed  bool
	Presence domain.Presence
}

// Subscribe watches the room's presence collection, filtering out this
// participant's own record.
func (t *Tracker) Subscribe(ctx context.Context) (<-chan PresenceEvent, func(), error) {
	sub, err := t.store.Subscribe(ctx, store.RoomPresence, store.Query{
		Filters: []store.Filter{
			store.Where("room_id", store.OpEq, t.roomID),
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe presence: %w", err)
	}

	out := make(chan PresenceEvent, 16)
	go func() {
		defer close(out)
		for ev := range sub.Events() {
			var p domain.Presence
			if ev.Type != store.Removed {
				if err := ev.Doc.Decode(&p); err != nil {
					t.logger.Warn(logging.Lab, logging.Presence, "malformed presence record", map[logging.ExtraKey]any{
						logging.ErrorMessage: err.Error(),
						logging.RoomID:       t.roomID,
					})
					continue
				}
			} else {
				remote, ok := remoteFromDocID(ev.Doc.ID, t.roomID)
				if !ok {
					// Deletes are forwarded collection wide; other
					// rooms' departures are not ours.
					continue
				}
				p.UserID = remote
			}

			if p.UserID == t.userID {
				continue
			}

			select {
			case out <- PresenceEvent{Removed: ev.Type == store.Removed, Presence: p}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, sub.Close, nil
}

// List returns the current presence records of the other participants.
func (t *Tracker) List(ctx context.Context) ([]domain.Presence, error) {
	docs, err := t.store.Find(ctx, store.RoomPresence, store.Query{
		Filters: []store.Filter{
			store.Where("room_id", store.OpEq, t.roomID),
		},
	})
	if err != nil {
		return nil, err
	}

	var out []domain.Presence
	for _, doc := range docs {
		var p domain.Presence
		if err := doc.Decode(&p); err != nil {
			continue
		}
		if p.UserID == t.userID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func remoteFromDocID(docID, roomID string) (string, bool) {
	prefix := roomID + ":"
	if len(docID) > len(prefix) && docID[:len(prefix)] == prefix {
		return docID[len(prefix):], true
	}
	return "", false
}
