package domain

import "time"

// Version is a point-in-time snapshot of a room's content. Owners save them
// manually or via the periodic auto-save.
type Version struct {
	ID        string    `json:"-"`
	RoomID    string    `json:"room_id"`
	Content   string    `json:"content"`
	SavedBy   string    `json:"saved_by"`
	Timestamp time.Time `json:"timestamp"`
}
