package clipboard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/store/memstore"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(memstore.New(), logging.NewNop())
}

func TestShareAndGet(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	clip, err := svc.Share(ctx, "copied text", "laptop", "alice")
	require.NoError(t, err)

	assert.Len(t, clip.Code, 6)
	assert.NotContainsf(t, clip.Code, "O", "code charset avoids ambiguous characters")

	got, err := svc.Get(ctx, clip.Code)
	require.NoError(t, err)
	assert.Equal(t, "copied text", got.Content)
	assert.Equal(t, "laptop", got.DeviceName)
	assert.Equal(t, "alice", got.CreatedBy)
}

func TestShareRequiresContent(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Share(context.Background(), "", "laptop", "alice")
	assert.Error(t, err)
}

func TestGetUnknownCode(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Get(context.Background(), "ZZZZZZ")
	assert.ErrorIs(t, err, domain.ErrClipboardNotFound)
}

func TestHistoryNewestFirstLimited(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < historyLimit+5; i++ {
		i := i
		svc.now = func() time.Time { return base.Add(time.Duration(i) * time.Second) }
		_, err := svc.Share(ctx, fmt.Sprintf("snippet %d", i), "phone", "alice")
		require.NoError(t, err)
	}
	_, err := svc.Share(ctx, "not mine", "tablet", "bob")
	require.NoError(t, err)

	history, err := svc.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, historyLimit)
	assert.Equal(t, fmt.Sprintf("snippet %d", historyLimit+4), history[0].Content)
	for _, clip := range history {
		assert.Equal(t, "alice", clip.CreatedBy)
	}
}

func TestDeleteIsOwnerOnly(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	clip, err := svc.Share(ctx, "temp", "laptop", "alice")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, clip.Code, "bob"), domain.ErrNotOwner)
	require.NoError(t, svc.Delete(ctx, clip.Code, "alice"))

	_, err = svc.Get(ctx, clip.Code)
	assert.ErrorIs(t, err, domain.ErrClipboardNotFound)
}
