package paste

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/infrastructure/metrics"
	"github.com/pastejet/pastejet/internal/infrastructure/validate"
	"github.com/pastejet/pastejet/internal/store"
)

// Service owns the pastes collection: creation, lookup by ID or custom slug,
// view counting and deletion.
type Service struct {
	store   store.Store
	logger  logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(st store.Store, logger logging.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:   st,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// CreateInput carries everything a new paste can be configured with. Expiry
// is shorthand like "10m", "1h", "7d", "1M".
type CreateInput struct {
	Title      string
	Content    string
	Language   string
	Visibility string
	Password   string
	CustomURL  string
	Expiry     string
	CreatedBy  string
}

var validateCreate = validate.Compose(
	validate.Field("content", validate.Required()),
)

var validateSlug = validate.Field("custom_url",
	validate.MinLength(3),
	validate.MaxLength(64),
	validate.Slug(),
)

func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Paste, error) {
	if err := validateCreate(in.Content); err != nil {
		return nil, err
	}

	if in.Title == "" {
		in.Title = domain.DefaultPasteTitle
	}
	if in.Visibility == "" {
		in.Visibility = domain.VisibilityPublic
	}
	if in.Visibility != domain.VisibilityPublic && in.Visibility != domain.VisibilityUnlisted {
		return nil, fmt.Errorf("visibility must be %q or %q", domain.VisibilityPublic, domain.VisibilityUnlisted)
	}
	if in.CreatedBy == "" {
		in.CreatedBy = domain.AnonymousUser
	}

	// Slug, expiry and unlisted visibility need an owner to manage them
	// later, so anonymous pastes are plain public ones.
	if in.CreatedBy == domain.AnonymousUser &&
		(in.CustomURL != "" || in.Expiry != "" || in.Visibility == domain.VisibilityUnlisted) {
		return nil, domain.ErrAnonymousLimited
	}

	if in.CustomURL != "" {
		if err := validateSlug(in.CustomURL); err != nil {
			return nil, err
		}
		taken, err := s.slugTaken(ctx, in.CustomURL)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, domain.ErrSlugTaken
		}
	}

	expiresAt, err := domain.ParseExpiry(in.Expiry, s.now())
	if err != nil {
		return nil, err
	}

	p := &domain.Paste{
		Title:       in.Title,
		Content:     in.Content,
		Language:    in.Language,
		Visibility:  in.Visibility,
		Password:    in.Password,
		HasPassword: in.Password != "",
		CustomURL:   in.CustomURL,
		ExpiresAt:   expiresAt,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   s.now().UTC(),
	}

	data, err := store.Encode(p)
	if err != nil {
		return nil, err
	}
	id, err := s.store.Add(ctx, store.Pastes, data)
	if err != nil {
		return nil, fmt.Errorf("create paste: %w", err)
	}
	p.ID = id

	return p, nil
}

func (s *Service) slugTaken(ctx context.Context, slug string) (bool, error) {
	docs, err := s.store.Find(ctx, store.Pastes, store.Query{
		Filters: []store.Filter{store.Where("custom_url", store.OpEq, slug)},
		Limit:   1,
	})
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

// Get fetches a paste by ID or custom slug. A wrong or missing password on a
// protected paste returns ErrPasteLocked with the content stripped; expired
// pastes return ErrPasteExpired. A successful read counts a view; failing to
// record it is logged, not returned.
func (s *Service) Get(ctx context.Context, idOrSlug, password string) (*domain.Paste, error) {
	p, err := s.resolve(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}

	if p.Expired(s.now()) {
		return nil, domain.ErrPasteExpired
	}

	if p.Protected() && p.Password != password {
		locked := &domain.Paste{
			ID:          p.ID,
			Title:       p.Title,
			HasPassword: true,
			Language:    p.Language,
			Visibility:  p.Visibility,
			CreatedBy:   p.CreatedBy,
			CreatedAt:   p.CreatedAt,
		}
		return locked, domain.ErrPasteLocked
	}
	p.Password = ""

	if err := s.store.Update(ctx, store.Pastes, p.ID, map[string]any{"views": p.Views + 1}); err != nil {
		s.logger.Warn(logging.Mongo, logging.LiveQuery, "failed to count paste view", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
			"paste_id":           p.ID,
		})
	} else {
		p.Views++
		if s.metrics != nil {
			s.metrics.PasteViews.Inc()
		}
	}

	return p, nil
}

func (s *Service) resolve(ctx context.Context, idOrSlug string) (*domain.Paste, error) {
	doc, err := s.store.Get(ctx, store.Pastes, idOrSlug)
	if err == nil {
		return decodePaste(doc)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	docs, err := s.store.Find(ctx, store.Pastes, store.Query{
		Filters: []store.Filter{store.Where("custom_url", store.OpEq, idOrSlug)},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrPasteNotFound
	}
	return decodePaste(docs[0])
}

func decodePaste(doc store.Document) (*domain.Paste, error) {
	var p domain.Paste
	if err := doc.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode paste: %w", err)
	}
	p.ID = doc.ID
	return &p, nil
}

// Delete removes the caller's paste.
func (s *Service) Delete(ctx context.Context, id, callerID string) error {
	p, err := s.resolve(ctx, id)
	if err != nil {
		return err
	}
	if p.CreatedBy != callerID {
		return domain.ErrNotOwner
	}
	return s.store.Delete(ctx, store.Pastes, p.ID)
}

// ListByOwner returns the user's pastes, newest first. Passwords are
// stripped; content stays since the owner can read it anyway.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Paste, error) {
	docs, err := s.store.Find(ctx, store.Pastes, store.Query{
		Filters:    []store.Filter{store.Where("created_by", store.OpEq, ownerID)},
		OrderBy:    "created_date",
		Descending: true,
	})
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Paste, 0, len(docs))
	for _, doc := range docs {
		p, err := decodePaste(doc)
		if err != nil {
			continue
		}
		p.Password = ""
		out = append(out, p)
	}
	return out, nil
}
