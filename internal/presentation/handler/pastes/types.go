package pastes

import "time"

type createPasteRequest struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Language   string `json:"language"`
	Visibility string `json:"visibility"`
	Password   string `json:"password"`
	CustomURL  string `json:"customUrl"`
	Expiry     string `json:"expiry"`
}

type pasteResponse struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content,omitempty"`
	Language   string     `json:"language"`
	Visibility string     `json:"visibility"`
	Protected  bool       `json:"protected"`
	CustomURL  string     `json:"customUrl,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	CreatedBy  string     `json:"createdBy"`
	CreatedAt  time.Time  `json:"createdAt"`
	Views      int64      `json:"views"`
}

type pasteListResponse struct {
	Pastes []pasteResponse `json:"pastes"`
}
