package clipboards

import "time"

type shareRequest struct {
	Content    string `json:"content"`
	DeviceName string `json:"deviceName"`
}

type clipboardResponse struct {
	Code       string    `json:"code"`
	Content    string    `json:"content"`
	DeviceName string    `json:"deviceName"`
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

type historyResponse struct {
	Clipboards []clipboardResponse `json:"clipboards"`
}
