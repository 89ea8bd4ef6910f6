package domain

import (
	"regexp"
	"strconv"
	"time"
)

const (
	VisibilityPublic   = "public"
	VisibilityUnlisted = "unlisted"

	AnonymousUser = "anonymous"

	DefaultPasteTitle = "Untitled Paste"
)

var expiryPattern = regexp.MustCompile(`^(\d+)([mhdM])$`)

// maxExpiryValue caps the count in expiry shorthand. 10000 months is
// already well beyond any retention anyone asks for.
const maxExpiryValue = 10000

type Paste struct {
	ID          string     `json:"-"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Language    string     `json:"language"`
	Visibility  string     `json:"visibility"`
	Password    string     `json:"password,omitempty"`
	HasPassword bool       `json:"protected,omitempty"`
	CustomURL   string     `json:"custom_url,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_date"`
	Views       int64      `json:"views"`
}

func (p *Paste) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

// Protected survives password stripping: HasPassword is persisted at
// creation, so listings can flag locked pastes without carrying the secret.
func (p *Paste) Protected() bool {
	return p.Password != "" || p.HasPassword
}

// ParseExpiry turns shorthand like "10m", "1h", "7d" or "1M" into an absolute
// deadline. A month is a flat 30 days. Empty input means no expiry.
func ParseExpiry(shorthand string, now time.Time) (*time.Time, error) {
	if shorthand == "" {
		return nil, nil
	}

	m := expiryPattern.FindStringSubmatch(shorthand)
	if m == nil {
		return nil, ErrInvalidExpiry
	}

	value, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, ErrInvalidExpiry
	}
	// Unbounded counts overflow the duration math into the past.
	if value < 1 || value > maxExpiryValue {
		return nil, ErrInvalidExpiry
	}

	var unit time.Duration
	switch m[2] {
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	case "M":
		unit = 30 * 24 * time.Hour
	default:
		return nil, ErrInvalidExpiry
	}

	deadline := now.Add(time.Duration(value) * unit)
	return &deadline, nil
}
