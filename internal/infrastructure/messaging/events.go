package messaging

import "github.com/pastejet/pastejet/internal/domain"

// AuditEventData is the payload carried inside an AmqpMessage for every
// room lifecycle event.
type AuditEventData struct {
	RoomID    string               `json:"room_id"`
	EventType domain.RoomEventType `json:"event_type"`
	ActorID   string               `json:"actor_id"`
	Metadata  map[string]any       `json:"metadata,omitempty"`
}
