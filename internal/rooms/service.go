package rooms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/infrastructure/validate"
	"github.com/pastejet/pastejet/internal/store"
)

const (
	// codeAttempts bounds room code generation on collisions.
	codeAttempts = 5

	// listAttempts and listBackoff drive the retry on the room listing
	// read. Backoff is linear: 1x, 2x.
	listAttempts = 3
	listBackoff  = time.Second
)

func memberDocID(roomID, userID string) string {
	return fmt.Sprintf("%s:%s", roomID, userID)
}

// Service owns room lifecycle and everything keyed under a room that is not
// handled by a live session: membership, chat, version history, settings.
type Service struct {
	store   store.Store
	logger  logging.Logger
	now     func() time.Time
	backoff time.Duration
}

func NewService(st store.Store, logger logging.Logger) *Service {
	return &Service{
		store:   st,
		logger:  logger,
		now:     time.Now,
		backoff: listBackoff,
	}
}

var validateRoomName = validate.Field("room_name",
	validate.Required(),
	validate.MaxLength(100),
)

// Create provisions a room with a fresh join code, seeded content and the
// creator as owner-member.
func (s *Service) Create(ctx context.Context, name, language, ownerID string, private bool, password string) (*domain.Room, error) {
	if err := validateRoomName(name); err != nil {
		return nil, err
	}
	if _, ok := domain.LanguageVersions[language]; !ok {
		return nil, fmt.Errorf("unsupported language %q", language)
	}
	if private && password == "" {
		return nil, fmt.Errorf("private rooms require a password")
	}

	var room *domain.Room
	for attempt := 0; attempt < codeAttempts; attempt++ {
		candidate, err := domain.NewRoom(name, language, ownerID, private, password)
		if err != nil {
			return nil, err
		}
		if _, err := s.store.Get(ctx, store.Rooms, candidate.ID); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		room = candidate
		break
	}
	if room == nil {
		return nil, domain.ErrRoomCodeExhausted
	}

	data, err := store.Encode(room)
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, store.Rooms, room.ID, data); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	if err := s.putMember(ctx, room.ID, ownerID, domain.RoleOwner); err != nil {
		return nil, err
	}

	s.logger.Info(logging.Lab, logging.LiveQuery, "room created", map[logging.ExtraKey]any{
		logging.RoomID: room.ID,
	})
	return room, nil
}

func (s *Service) putMember(ctx context.Context, roomID, userID string, role domain.MemberRole) error {
	member := domain.NewMember(userID, role)
	data, err := store.Encode(member)
	if err != nil {
		return err
	}
	data["room_id"] = roomID
	return s.store.Put(ctx, store.RoomMembers, memberDocID(roomID, userID), data)
}

// Get loads a room by its code.
func (s *Service) Get(ctx context.Context, roomID string) (*domain.Room, error) {
	doc, err := s.store.Get(ctx, store.Rooms, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	return decodeRoom(doc)
}

func decodeRoom(doc store.Document) (*domain.Room, error) {
	var room domain.Room
	if err := doc.Decode(&room); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	room.ID = doc.ID
	return &room, nil
}

// Join checks the password on private rooms and records the membership.
// Joining twice is idempotent.
func (s *Service) Join(ctx context.Context, roomID, userID, password string) (*domain.Room, error) {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.Active {
		return nil, domain.ErrRoomInactive
	}
	if err := room.CheckPassword(password); err != nil {
		return nil, err
	}

	role := domain.RoleMember
	if room.IsOwner(userID) {
		role = domain.RoleOwner
	}
	if err := s.putMember(ctx, roomID, userID, role); err != nil {
		return nil, err
	}
	return room, nil
}

// Leave drops the membership and cleans the member's cursor record.
func (s *Service) Leave(ctx context.Context, roomID, userID string) error {
	if err := s.store.Delete(ctx, store.RoomMembers, memberDocID(roomID, userID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrNotMember
		}
		return err
	}
	s.cleanupMemberRecords(ctx, roomID, userID)
	return nil
}

// cleanupMemberRecords drops the cursor and presence docs a participant
// leaves behind. Best effort.
func (s *Service) cleanupMemberRecords(ctx context.Context, roomID, userID string) {
	docID := memberDocID(roomID, userID)
	for _, collection := range []string{store.RoomCursors, store.RoomPresence} {
		if err := s.store.Delete(ctx, collection, docID); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn(logging.Lab, logging.Presence, "failed to clean member record", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
				logging.RoomID:       roomID,
				"collection":         collection,
			})
		}
	}
}

// Members lists the room's members.
func (s *Service) Members(ctx context.Context, roomID string) ([]*domain.Member, error) {
	docs, err := s.store.Find(ctx, store.RoomMembers, store.Query{
		Filters: []store.Filter{store.Where("room_id", store.OpEq, roomID)},
		OrderBy: "joined_at",
	})
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Member, 0, len(docs))
	for _, doc := range docs {
		var m domain.Member
		if err := doc.Decode(&m); err != nil {
			continue
		}
		out = append(out, &m)
	}
	return out, nil
}

// AddMember lets the owner add a participant directly.
func (s *Service) AddMember(ctx context.Context, roomID, actorID, userID string) error {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsOwner(actorID) {
		return domain.ErrNotOwner
	}
	return s.putMember(ctx, roomID, userID, domain.RoleMember)
}

// RemoveMember kicks a participant. Their mute-list entry stays; being
// removed does not unmute a re-joining user.
func (s *Service) RemoveMember(ctx context.Context, roomID, actorID, userID string) error {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsOwner(actorID) {
		return domain.ErrNotOwner
	}

	if err := s.store.Delete(ctx, store.RoomMembers, memberDocID(roomID, userID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrMemberNotFound
		}
		return err
	}
	s.cleanupMemberRecords(ctx, roomID, userID)
	return nil
}

// List returns the active rooms the user owns or joined. The listing read is
// retried up to three times with linear backoff; every other read in this
// service is single-shot.
func (s *Service) List(ctx context.Context, userID string) ([]*domain.Room, error) {
	var lastErr error
	for attempt := 1; attempt <= listAttempts; attempt++ {
		roomsList, err := s.list(ctx, userID)
		if err == nil {
			return roomsList, nil
		}
		lastErr = err

		s.logger.Warn(logging.Lab, logging.LiveQuery, "room listing failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
			"attempt":            attempt,
		})
		if attempt == listAttempts {
			break
		}

		select {
		case <-time.After(time.Duration(attempt) * s.backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("list rooms: %w", lastErr)
}

func (s *Service) list(ctx context.Context, userID string) ([]*domain.Room, error) {
	owned, err := s.store.Find(ctx, store.Rooms, store.Query{
		Filters: []store.Filter{
			store.Where("created_by", store.OpEq, userID),
			store.Where("is_active", store.OpEq, true),
		},
		OrderBy:    "created_date",
		Descending: true,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(owned))
	out := make([]*domain.Room, 0, len(owned))
	for _, doc := range owned {
		room, err := decodeRoom(doc)
		if err != nil {
			continue
		}
		seen[room.ID] = true
		out = append(out, room)
	}

	memberships, err := s.store.Find(ctx, store.RoomMembers, store.Query{
		Filters: []store.Filter{store.Where("user_id", store.OpEq, userID)},
	})
	if err != nil {
		return nil, err
	}

	for _, doc := range memberships {
		roomID, _ := doc.Data["room_id"].(string)
		if roomID == "" || seen[roomID] {
			continue
		}
		seen[roomID] = true

		room, err := s.Get(ctx, roomID)
		if err != nil || !room.Active {
			continue
		}
		out = append(out, room)
	}
	return out, nil
}

// UpdateSettings changes privacy and password. Owner only; making a room
// public clears its password.
func (s *Service) UpdateSettings(ctx context.Context, roomID, actorID string, private bool, password string) error {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsOwner(actorID) {
		return domain.ErrNotOwner
	}
	if private && password == "" {
		return fmt.Errorf("private rooms require a password")
	}
	if !private {
		password = ""
	}

	return s.store.Update(ctx, store.Rooms, roomID, map[string]any{
		"is_private": private,
		"password":   password,
	})
}

// Close soft-deletes the room. Live sessions see the flag flip and shut
// themselves down.
func (s *Service) Close(ctx context.Context, roomID, actorID string) error {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsOwner(actorID) {
		return domain.ErrNotOwner
	}
	return s.store.Update(ctx, store.Rooms, roomID, map[string]any{"is_active": false})
}

// SaveVersion snapshots the room's current content. Owner only.
func (s *Service) SaveVersion(ctx context.Context, roomID, actorID string) (*domain.Version, error) {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsOwner(actorID) {
		return nil, domain.ErrNotOwner
	}

	v := &domain.Version{
		RoomID:    roomID,
		Content:   room.Content,
		SavedBy:   actorID,
		Timestamp: s.now().UTC(),
	}
	data, err := store.Encode(v)
	if err != nil {
		return nil, err
	}
	id, err := s.store.Add(ctx, store.RoomVersions, data)
	if err != nil {
		return nil, fmt.Errorf("save version: %w", err)
	}
	v.ID = id
	return v, nil
}

// ListVersions returns the room's history, newest first.
func (s *Service) ListVersions(ctx context.Context, roomID string) ([]*domain.Version, error) {
	docs, err := s.store.Find(ctx, store.RoomVersions, store.Query{
		Filters:    []store.Filter{store.Where("room_id", store.OpEq, roomID)},
		OrderBy:    "timestamp",
		Descending: true,
	})
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Version, 0, len(docs))
	for _, doc := range docs {
		var v domain.Version
		if err := doc.Decode(&v); err != nil {
			continue
		}
		v.ID = doc.ID
		out = append(out, &v)
	}
	return out, nil
}

// RestoreVersion overwrites the room content with a saved snapshot. Owner
// only; participants pick the change up through text sync.
func (s *Service) RestoreVersion(ctx context.Context, roomID, actorID, versionID string) error {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsOwner(actorID) {
		return domain.ErrNotOwner
	}

	doc, err := s.store.Get(ctx, store.RoomVersions, versionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("version %s not found", versionID)
		}
		return err
	}

	var v domain.Version
	if err := doc.Decode(&v); err != nil {
		return fmt.Errorf("decode version: %w", err)
	}
	if v.RoomID != roomID {
		return fmt.Errorf("version %s does not belong to this room", versionID)
	}

	return s.store.Update(ctx, store.Rooms, roomID, map[string]any{"content": v.Content})
}

// SendMessage appends a chat message.
func (s *Service) SendMessage(ctx context.Context, roomID, senderID, displayName, content string) (*domain.ChatMessage, error) {
	if content == "" {
		return nil, fmt.Errorf("message content must not be empty")
	}
	if _, err := s.store.Get(ctx, store.RoomMembers, memberDocID(roomID, senderID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrNotMember
		}
		return nil, err
	}

	msg := &domain.ChatMessage{
		RoomID:      roomID,
		Content:     content,
		Sender:      senderID,
		DisplayName: displayName,
		Timestamp:   s.now().UTC(),
	}
	data, err := store.Encode(msg)
	if err != nil {
		return nil, err
	}
	id, err := s.store.Add(ctx, store.RoomMessages, data)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	msg.ID = id
	return msg, nil
}

// Messages returns the room's chat, oldest first.
func (s *Service) Messages(ctx context.Context, roomID string) ([]*domain.ChatMessage, error) {
	docs, err := s.store.Find(ctx, store.RoomMessages, store.Query{
		Filters: []store.Filter{store.Where("room_id", store.OpEq, roomID)},
		OrderBy: "timestamp",
	})
	if err != nil {
		return nil, err
	}

	out := make([]*domain.ChatMessage, 0, len(docs))
	for _, doc := range docs {
		var msg domain.ChatMessage
		if err := doc.Decode(&msg); err != nil {
			continue
		}
		msg.ID = doc.ID
		out = append(out, &msg)
	}
	return out, nil
}

// SubscribeMessages streams chat messages for a room, snapshot first.
func (s *Service) SubscribeMessages(ctx context.Context, roomID string) (<-chan domain.ChatMessage, func(), error) {
	sub, err := s.store.Subscribe(ctx, store.RoomMessages, store.Query{
		Filters: []store.Filter{store.Where("room_id", store.OpEq, roomID)},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe messages: %w", err)
	}

	out := make(chan domain.ChatMessage, 64)
	go func() {
		defer close(out)
		for ev := range sub.Events() {
			if ev.Type == store.Removed {
				continue
			}
			var msg domain.ChatMessage
			if err := ev.Doc.Decode(&msg); err != nil {
				continue
			}
			msg.ID = ev.Doc.ID

			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, sub.Close, nil
}
