package lab

import (
	"context"
	"sync"

	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/store"
)

// TextSync keeps the local editor buffer and the room document's content
// field converged. Writes overwrite the whole document (last writer wins,
// no diffing); remote snapshots replace local state unless they are equal,
// which makes applying our own write's round trip a no-op.
type TextSync struct {
	store  store.Store
	roomID string
	logger logging.Logger

	mu    sync.Mutex
	local string

	// onRemote fires when a remote edit replaced local state.
	onRemote func(text string)
}

func NewTextSync(st store.Store, roomID string, logger logging.Logger, onRemote func(string)) *TextSync {
	return &TextSync{
		store:    st,
		roomID:   roomID,
		logger:   logger,
		onRemote: onRemote,
	}
}

// Seed sets the starting buffer without writing to the store.
func (s *TextSync) Seed(text string) {
	s.mu.Lock()
	s.local = text
	s.mu.Unlock()
}

func (s *TextSync) Local() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

// SetLocal applies a local edit: state first, then the store write. A failed
// write leaves local state ahead of the room document until the next edit.
func (s *TextSync) SetLocal(ctx context.Context, text string) {
	s.mu.Lock()
	s.local = text
	s.mu.Unlock()

	if err := s.store.Update(ctx, store.Rooms, s.roomID, map[string]any{"content": text}); err != nil {
		s.logger.Warn(logging.Lab, logging.TextSync, "failed to sync content", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
			logging.RoomID:       s.roomID,
		})
	}
}

// ApplyRemote replaces local state with a room document snapshot. Equal text
// does not fire the change callback.
func (s *TextSync) ApplyRemote(text string) {
	s.mu.Lock()
	if s.local == text {
		s.mu.Unlock()
		return
	}
	s.local = text
	s.mu.Unlock()

	if s.onRemote != nil {
		s.onRemote(text)
	}
}
