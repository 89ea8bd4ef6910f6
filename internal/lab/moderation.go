package lab

import (
	"context"
	"fmt"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/store"
)

// Moderator mutates a room's mute list. All operations are owner-only;
// participants pick the list up through their room document subscription and
// enforce it on themselves.
type Moderator struct {
	store  store.Store
	roomID string
}

func NewModerator(st store.Store, roomID string) *Moderator {
	return &Moderator{store: st, roomID: roomID}
}

func (m *Moderator) loadRoom(ctx context.Context) (*domain.Room, error) {
	doc, err := m.store.Get(ctx, store.Rooms, m.roomID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}

	var room domain.Room
	if err := doc.Decode(&room); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	room.ID = doc.ID
	return &room, nil
}

// ToggleMuteUser adds or removes the target from the mute list.
func (m *Moderator) ToggleMuteUser(ctx context.Context, actorID, targetID string) error {
	room, err := m.loadRoom(ctx)
	if err != nil {
		return err
	}
	if !room.IsOwner(actorID) {
		return domain.ErrNotOwner
	}

	return m.writeMuteList(ctx, room.ToggleMuted(targetID))
}

// MuteAll mutes every member except the owner.
func (m *Moderator) MuteAll(ctx context.Context, actorID string) error {
	room, err := m.loadRoom(ctx)
	if err != nil {
		return err
	}
	if !room.IsOwner(actorID) {
		return domain.ErrNotOwner
	}

	docs, err := m.store.Find(ctx, store.RoomMembers, store.Query{
		Filters: []store.Filter{
			store.Where("room_id", store.OpEq, m.roomID),
		},
	})
	if err != nil {
		return err
	}

	muted := make([]string, 0, len(docs))
	for _, doc := range docs {
		var member domain.Member
		if err := doc.Decode(&member); err != nil {
			continue
		}
		if member.UserID == room.CreatedBy {
			continue
		}
		muted = append(muted, member.UserID)
	}

	return m.writeMuteList(ctx, muted)
}

// UnmuteAll clears the mute list. Participants regain the ability to unmute
// but are not unmuted automatically.
func (m *Moderator) UnmuteAll(ctx context.Context, actorID string) error {
	room, err := m.loadRoom(ctx)
	if err != nil {
		return err
	}
	if !room.IsOwner(actorID) {
		return domain.ErrNotOwner
	}

	return m.writeMuteList(ctx, []string{})
}

func (m *Moderator) writeMuteList(ctx context.Context, muted []string) error {
	if muted == nil {
		muted = []string{}
	}
	return m.store.Update(ctx, store.Rooms, m.roomID, map[string]any{"muted_users": muted})
}
