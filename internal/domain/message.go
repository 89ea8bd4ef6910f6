package domain

import "time"

// ChatMessage lives in a room's message collection, ordered by timestamp.
type ChatMessage struct {
	ID          string    `json:"-"`
	RoomID      string    `json:"room_id"`
	Content     string    `json:"content"`
	Sender      string    `json:"sender"`
	DisplayName string    `json:"display_name"`
	Timestamp   time.Time `json:"timestamp"`
}
