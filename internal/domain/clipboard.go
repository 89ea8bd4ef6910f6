package domain

import "time"

// Clipboard is a single shared snippet addressable by its 6-character code.
type Clipboard struct {
	ID          string    `json:"-"`
	Code        string    `json:"clipboard_id"`
	Content     string    `json:"content"`
	DeviceName  string    `json:"device_name"`
	CreatedBy   string    `json:"created_by"`
	CreatedDate time.Time `json:"created_date"`
}

// GenerateClipboardCode shares the room code alphabet so codes stay easy to
// read out loud across devices.
func GenerateClipboardCode() (string, error) {
	return GenerateRoomCode()
}
