package rooms

import "time"

type createRoomRequest struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Private  bool   `json:"private"`
	Password string `json:"password"`
}

type joinRoomRequest struct {
	Password string `json:"password"`
}

type updateSettingsRequest struct {
	Private  bool   `json:"private"`
	Password string `json:"password"`
}

type addMemberRequest struct {
	UserID string `json:"userId"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type executeRequest struct {
	Code  string `json:"code"`
	Input string `json:"input"`
}

type playgroundExecuteRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Input    string `json:"input"`
}

type roomResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Language   string    `json:"language"`
	Content    string    `json:"content"`
	Active     bool      `json:"active"`
	Private    bool      `json:"private"`
	MutedUsers []string  `json:"mutedUsers"`
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

type roomListResponse struct {
	Rooms []roomResponse `json:"rooms"`
}

type memberResponse struct {
	UserID   string    `json:"userId"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

type memberListResponse struct {
	Members []memberResponse `json:"members"`
}

type versionResponse struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	SavedBy   string    `json:"savedBy"`
	Timestamp time.Time `json:"timestamp"`
}

type versionListResponse struct {
	Versions []versionResponse `json:"versions"`
}

type messageResponse struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Timestamp   time.Time `json:"timestamp"`
}

type messageListResponse struct {
	Messages []messageResponse `json:"messages"`
}

type executeResponse struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Output string `json:"output"`
}

type auditEntryResponse struct {
	ID        string         `json:"id"`
	EventType string         `json:"eventType"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type auditListResponse struct {
	Entries []auditEntryResponse `json:"entries"`
}
