package domain

import "time"

// UserProfile is the dashboard-facing record for an authenticated user.
type UserProfile struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PasteStats summarizes a user's pastes for the dashboard.
type PasteStats struct {
	TotalPastes     int   `json:"total_pastes"`
	TotalViews      int64 `json:"total_views"`
	ProtectedPastes int   `json:"protected_pastes"`
}
