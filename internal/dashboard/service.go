package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/store"
)

// Paste listing filters understood by ListPastes.
const (
	FilterAll       = "all"
	FilterPublic    = "public"
	FilterProtected = "protected"
)

// Service backs the user dashboard: profile upkeep and paste statistics.
type Service struct {
	store  store.Store
	logger logging.Logger
	now    func() time.Time
}

func NewService(st store.Store, logger logging.Logger) *Service {
	return &Service{store: st, logger: logger, now: time.Now}
}

// UpsertProfile writes the user document keyed by user ID.
func (s *Service) UpsertProfile(ctx context.Context, userID, displayName, photoURL string) (*domain.UserProfile, error) {
	if displayName == "" {
		displayName = userID
	}

	profile := &domain.UserProfile{
		UserID:      userID,
		DisplayName: displayName,
		PhotoURL:    photoURL,
		UpdatedAt:   s.now().UTC(),
	}
	data, err := store.Encode(profile)
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, store.Users, userID, data); err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return profile, nil
}

// Profile loads the user document.
func (s *Service) Profile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	doc, err := s.store.Get(ctx, store.Users, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	var profile domain.UserProfile
	if err := doc.Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &profile, nil
}

// Stats aggregates the user's pastes.
func (s *Service) Stats(ctx context.Context, userID string) (*domain.PasteStats, error) {
	pastes, err := s.ownerPastes(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &domain.PasteStats{TotalPastes: len(pastes)}
	for _, p := range pastes {
		stats.TotalViews += p.Views
		if p.Protected() {
			stats.ProtectedPastes++
		}
	}
	return stats, nil
}

// ListPastes returns the user's pastes filtered by visibility, newest first.
// Passwords are stripped from the result.
func (s *Service) ListPastes(ctx context.Context, userID, filter string) ([]*domain.Paste, error) {
	pastes, err := s.ownerPastes(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Paste, 0, len(pastes))
	for _, p := range pastes {
		switch filter {
		case FilterPublic:
			if p.Visibility != domain.VisibilityPublic || p.Protected() {
				continue
			}
		case FilterProtected:
			if !p.Protected() {
				continue
			}
		case FilterAll, "":
		default:
			return nil, fmt.Errorf("unknown filter %q", filter)
		}

		p.Password = ""
		out = append(out, p)
	}
	return out, nil
}

func (s *Service) ownerPastes(ctx context.Context, userID string) ([]*domain.Paste, error) {
	docs, err := s.store.Find(ctx, store.Pastes, store.Query{
		Filters:    []store.Filter{store.Where("created_by", store.OpEq, userID)},
		OrderBy:    "created_date",
		Descending: true,
	})
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Paste, 0, len(docs))
	for _, doc := range docs {
		var p domain.Paste
		if err := doc.Decode(&p); err != nil {
			continue
		}
		p.ID = doc.ID
		out = append(out, &p)
	}
	return out, nil
}
