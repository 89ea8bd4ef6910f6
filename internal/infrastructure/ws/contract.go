package ws

import (
	"encoding/json"
	"time"

	"github.com/pastejet/pastejet/internal/domain"
)

type WSMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Data   any    `json:"data,omitempty"`
}

// Command is what the client sends. Data is decoded per Type.
type Command struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Payload structs
type ContentPayload struct {
	Content string `json:"content"`
}

type CursorMovePayload struct {
	Offset int `json:"offset"`
}

type CursorPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Line        int    `json:"line"`
	Column      int    `json:"column"`
}

type ChatSendPayload struct {
	Content string `json:"content"`
}

type ChatPayload struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Timestamp   string `json:"timestamp"`
}

type PresencePayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	AudioActive bool   `json:"audioActive"`
}

type MutePayload struct {
	Muted bool `json:"muted"`
}

type VolumePayload struct {
	Peer   string  `json:"peer"`
	Volume float64 `json:"volume"`
}

type AudioPeersPayload struct {
	Peers []string `json:"peers"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type UserPayload struct {
	UserID string `json:"userId"`
}

func NewContentSync(roomID, content string) *WSMessage {
	return &WSMessage{
		Type:   ContentSync,
		RoomID: roomID,
		Data:   ContentPayload{Content: content},
	}
}

func NewCursorUpdate(roomID string, c domain.Cursor) *WSMessage {
	return &WSMessage{
		Type:   CursorUpdate,
		RoomID: roomID,
		Data: CursorPayload{
			UserID:      c.UserID,
			DisplayName: c.DisplayName,
			Line:        c.Position.Line,
			Column:      c.Position.Column,
		},
	}
}

func NewCursorRemoved(roomID, userID string) *WSMessage {
	return &WSMessage{
		Type:   CursorRemoved,
		RoomID: roomID,
		Data:   UserPayload{UserID: userID},
	}
}

func NewChatReceived(roomID string, m domain.ChatMessage) *WSMessage {
	return &WSMessage{
		Type:   ChatReceived,
		RoomID: roomID,
		Data: ChatPayload{
			ID:          m.ID,
			Content:     m.Content,
			UserID:      m.Sender,
			DisplayName: m.DisplayName,
			Timestamp:   m.Timestamp.Format(time.RFC3339),
		},
	}
}

func NewPresenceUpdate(roomID string, p domain.Presence) *WSMessage {
	return &WSMessage{
		Type:   PresenceUpdate,
		RoomID: roomID,
		Data: PresencePayload{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			AudioActive: p.AudioActive,
		},
	}
}

func NewPresenceRemoved(roomID, userID string) *WSMessage {
	return &WSMessage{
		Type:   PresenceRemoved,
		RoomID: roomID,
		Data:   UserPayload{UserID: userID},
	}
}

func NewAudioPeers(roomID string, peers []string) *WSMessage {
	return &WSMessage{
		Type:   AudioPeers,
		RoomID: roomID,
		Data:   AudioPeersPayload{Peers: peers},
	}
}

func NewRoomClosed(roomID string) *WSMessage {
	return &WSMessage{
		Type:   RoomClosed,
		RoomID: roomID,
	}
}

func NewError(roomID, message string) *WSMessage {
	return &WSMessage{
		Type:   ErrorEvent,
		RoomID: roomID,
		Data:   ErrorPayload{Message: message},
	}
}
