package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RoomEventType string

const (
	EventRoomCreated    RoomEventType = "room_created"
	EventRoomClosed     RoomEventType = "room_closed"
	EventMemberJoined   RoomEventType = "member_joined"
	EventMemberLeft     RoomEventType = "member_left"
	EventMemberRemoved  RoomEventType = "member_removed"
	EventMemberMuted    RoomEventType = "member_muted"
	EventMemberUnmuted  RoomEventType = "member_unmuted"
	EventVersionSaved   RoomEventType = "version_saved"
	EventCodeExecuted   RoomEventType = "code_executed"
	EventSettingsChange RoomEventType = "settings_changed"
)

type RoomAuditLog struct {
	ID        string         `bson:"_id" json:"id"`
	RoomID    string         `bson:"room_id" json:"roomId"`
	EventType RoomEventType  `bson:"event_type" json:"eventType"`
	Timestamp time.Time      `bson:"timestamp" json:"timestamp"`
	Metadata  map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

type RoomAuditRepository interface {
	Log(ctx context.Context, log *RoomAuditLog) error
	GetByRoomID(ctx context.Context, roomID string, limit int) ([]RoomAuditLog, error)
	GetByEventType(ctx context.Context, eventType RoomEventType, from, to time.Time) ([]RoomAuditLog, error)
	DeleteOlderThan(ctx context.Context, before time.Time) error
	EnsureIndexes(ctx context.Context) error
}

func NewRoomAuditLog(roomID string, eventType RoomEventType, metadata map[string]any) *RoomAuditLog {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &RoomAuditLog{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		EventType: eventType,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
