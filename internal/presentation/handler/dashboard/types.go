package dashboard

import "time"

type profileRequest struct {
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
}

type profileResponse struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	PhotoURL    string    `json:"photoUrl,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type statsResponse struct {
	TotalPastes     int   `json:"totalPastes"`
	TotalViews      int64 `json:"totalViews"`
	ProtectedPastes int   `json:"protectedPastes"`
}

type pasteSummary struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Language   string     `json:"language"`
	Visibility string     `json:"visibility"`
	Protected  bool       `json:"protected"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	Views      int64      `json:"views"`
}

type pasteListResponse struct {
	Pastes []pasteSummary `json:"pastes"`
}
