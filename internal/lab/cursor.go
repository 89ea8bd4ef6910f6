package lab

import (
	"context"
	"fmt"
	"time"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/store"
)

func cursorDocID(roomID, userID string) string {
	return fmt.Sprintf("%s:%s", roomID, userID)
}

// CursorPublisher upserts this participant's cursor document in place, one
// document per participant per room.
type CursorPublisher struct {
	store       store.Store
	roomID      string
	userID      string
	displayName string
}

func NewCursorPublisher(st store.Store, roomID, userID, displayName string) *CursorPublisher {
	return &CursorPublisher{
		store:       st,
		roomID:      roomID,
		userID:      userID,
		displayName: displayName,
	}
}

// Publish converts the caret offset against the given text and upserts the
// cursor document.
func (p *CursorPublisher) Publish(ctx context.Context, text string, offset int) error {
	data, err := store.Encode(domain.Cursor{
		UserID:      p.userID,
		Position:    domain.PositionFromOffset(text, offset),
		DisplayName: p.displayName,
		LastUpdated: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	data["room_id"] = p.roomID

	return p.store.Put(ctx, store.RoomCursors, cursorDocID(p.roomID, p.userID), data)
}

// Clear removes the cursor document, typically on leave.
func (p *CursorPublisher) Clear(ctx context.Context) error {
	return p.store.Delete(ctx, store.RoomCursors, cursorDocID(p.roomID, p.userID))
}
