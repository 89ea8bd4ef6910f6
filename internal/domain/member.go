package domain

import "time"

type MemberRole string

const (
	RoleOwner  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

// Member documents are keyed by the member's user ID inside each room's
// member collection.
type Member struct {
	UserID   string     `json:"user_id"`
	Role     MemberRole `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`
}

func NewMember(userID string, role MemberRole) *Member {
	return &Member{
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now().UTC(),
	}
}
