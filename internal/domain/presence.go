package domain

import "time"

// Presence is upserted when a participant joins the audio layer of a room
// and refreshed on a heartbeat. There is no TTL: a crashed client leaves a
// stale record behind until the room is cleaned up.
type Presence struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AudioActive bool      `json:"audio_active"`
	LastActive  time.Time `json:"last_active"`
}
