package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"time"
)

const (
	roomCodeLength = 6

	// Unambiguous charset: no I, O, 0, 1
	roomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var roomCharsetLen = big.NewInt(int64(len(roomCodeChars)))

// Room is the shared document every CodeLab participant watches. Content is
// the whole editor buffer and is overwritten wholesale on every edit.
type Room struct {
	ID         string    `json:"room_id"`
	Name       string    `json:"room_name"`
	Language   string    `json:"language"`
	Content    string    `json:"content"`
	Active     bool      `json:"is_active"`
	Private    bool      `json:"is_private"`
	Password   string    `json:"password,omitempty"`
	MutedUsers []string  `json:"muted_users"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_date"`
}

func NewRoom(name, language, owner string, private bool, password string) (*Room, error) {
	code, err := GenerateRoomCode()
	if err != nil {
		return nil, err
	}

	if !private {
		password = ""
	}

	return &Room{
		ID:         code,
		Name:       name,
		Language:   language,
		Content:    fmt.Sprintf("// Welcome to %s!\n// Start coding together...\n\n", name),
		Active:     true,
		Private:    private,
		Password:   password,
		MutedUsers: []string{},
		CreatedBy:  owner,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (r *Room) IsOwner(userID string) bool {
	return r.CreatedBy == userID
}

func (r *Room) IsMuted(userID string) bool {
	return slices.Contains(r.MutedUsers, userID)
}

// ToggleMuted returns the mute list with userID added or removed.
func (r *Room) ToggleMuted(userID string) []string {
	if r.IsMuted(userID) {
		out := make([]string, 0, len(r.MutedUsers))
		for _, u := range r.MutedUsers {
			if u != userID {
				out = append(out, u)
			}
		}
		return out
	}
	return append(slices.Clone(r.MutedUsers), userID)
}

func (r *Room) CheckPassword(password string) error {
	if !r.Private {
		return nil
	}
	if r.Password != password {
		return ErrWrongPassword
	}
	return nil
}

func GenerateRoomCode() (string, error) {
	var sb strings.Builder
	sb.Grow(roomCodeLength)

	for i := 0; i < roomCodeLength; i++ {
		n, err := rand.Int(rand.Reader, roomCharsetLen)
		if err != nil {
			return "", err
		}
		sb.WriteByte(roomCodeChars[n.Int64()])
	}

	return sb.String(), nil
}
