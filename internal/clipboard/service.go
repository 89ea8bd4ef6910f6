package clipboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/infrastructure/validate"
	"github.com/pastejet/pastejet/internal/store"
)

const (
	// codeAttempts bounds how often Share retries on a code collision.
	codeAttempts = 5

	historyLimit = 50
)

// Service implements cross-device clipboard sync: share a snippet under a
// short code, fetch it from another device, browse your history.
type Service struct {
	store  store.Store
	logger logging.Logger
	now    func() time.Time
}

func NewService(st store.Store, logger logging.Logger) *Service {
	return &Service{store: st, logger: logger, now: time.Now}
}

var validateShare = validate.Compose(
	validate.Field("content", validate.Required()),
)

// Share stores the snippet and returns it with its freshly generated code.
func (s *Service) Share(ctx context.Context, content, deviceName, createdBy string) (*domain.Clipboard, error) {
	if err := validateShare(content); err != nil {
		return nil, err
	}
	if deviceName == "" {
		deviceName = "unknown device"
	}

	code, err := s.uniqueCode(ctx)
	if err != nil {
		return nil, err
	}

	clip := &domain.Clipboard{
		Code:        code,
		Content:     content,
		DeviceName:  deviceName,
		CreatedBy:   createdBy,
		CreatedDate: s.now().UTC(),
	}

	data, err := store.Encode(clip)
	if err != nil {
		return nil, err
	}
	id, err := s.store.Add(ctx, store.Clipboards, data)
	if err != nil {
		return nil, fmt.Errorf("share clipboard: %w", err)
	}
	clip.ID = id

	return clip, nil
}

func (s *Service) uniqueCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := domain.GenerateClipboardCode()
		if err != nil {
			return "", err
		}

		docs, err := s.store.Find(ctx, store.Clipboards, store.Query{
			Filters: []store.Filter{store.Where("clipboard_id", store.OpEq, code)},
			Limit:   1,
		})
		if err != nil {
			return "", err
		}
		if len(docs) == 0 {
			return code, nil
		}
	}
	return "", domain.ErrClipboardExhausted
}

// Get fetches a snippet by its share code.
func (s *Service) Get(ctx context.Context, code string) (*domain.Clipboard, error) {
	docs, err := s.store.Find(ctx, store.Clipboards, store.Query{
		Filters: []store.Filter{store.Where("clipboard_id", store.OpEq, code)},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrClipboardNotFound
	}
	return decodeClipboard(docs[0])
}

// History lists the caller's most recent snippets, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]*domain.Clipboard, error) {
	docs, err := s.store.Find(ctx, store.Clipboards, store.Query{
		Filters:    []store.Filter{store.Where("created_by", store.OpEq, userID)},
		OrderBy:    "created_date",
		Descending: true,
		Limit:      historyLimit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Clipboard, 0, len(docs))
	for _, doc := range docs {
		clip, err := decodeClipboard(doc)
		if err != nil {
			continue
		}
		out = append(out, clip)
	}
	return out, nil
}

// Delete removes the caller's snippet by code.
func (s *Service) Delete(ctx context.Context, code, callerID string) error {
	clip, err := s.Get(ctx, code)
	if err != nil {
		return err
	}
	if clip.CreatedBy != callerID {
		return domain.ErrNotOwner
	}
	if err := s.store.Delete(ctx, store.Clipboards, clip.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

func decodeClipboard(doc store.Document) (*domain.Clipboard, error) {
	var clip domain.Clipboard
	if err := doc.Decode(&clip); err != nil {
		return nil, fmt.Errorf("decode clipboard: %w", err)
	}
	clip.ID = doc.ID
	return &clip, nil
}
