package dashboard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/paste"
	"github.com/pastejet/pastejet/internal/store"
	"github.com/pastejet/pastejet/internal/store/memstore"
)

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()

	st := memstore.New()
	return NewService(st, logging.NewNop()), st
}

func seedPastes(t *testing.T, st store.Store) {
	t.Helper()

	pastes := paste.NewService(st, logging.NewNop(), nil)
	ctx := context.Background()

	p, err := pastes.Create(ctx, paste.CreateInput{Content: "public one", CreatedBy: "alice"})
	require.NoError(t, err)
	_, err = pastes.Create(ctx, paste.CreateInput{Content: "locked one", Password: "pw", CreatedBy: "alice"})
	require.NoError(t, err)
	_, err = pastes.Create(ctx, paste.CreateInput{Content: "not alice's", CreatedBy: "bob"})
	require.NoError(t, err)

	// Three views on the public paste.
	for i := 0; i < 3; i++ {
		_, err := pastes.Get(ctx, p.ID, "")
		require.NoError(t, err)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Profile(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	saved, err := svc.UpsertProfile(ctx, "alice", "Alice", "https://example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, "Alice", saved.DisplayName)

	got, err := svc.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)
	assert.Equal(t, "https://example.com/a.png", got.PhotoURL)

	// Upsert overwrites in place.
	_, err = svc.UpsertProfile(ctx, "alice", "Alice B.", "")
	require.NoError(t, err)
	got, err = svc.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice B.", got.DisplayName)
}

func TestUpsertProfileDefaultsDisplayName(t *testing.T) {
	svc, _ := newTestService(t)

	saved, err := svc.UpsertProfile(context.Background(), "user-123", "", "")
	require.NoError(t, err)
	assert.Equal(t, "user-123", saved.DisplayName)
}

func TestStats(t *testing.T) {
	svc, st := newTestService(t)
	seedPastes(t, st)

	stats, err := svc.Stats(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalPastes)
	assert.Equal(t, int64(3), stats.TotalViews)
	assert.Equal(t, 1, stats.ProtectedPastes)
}

func TestListPastesFilters(t *testing.T) {
	svc, st := newTestService(t)
	seedPastes(t, st)
	ctx := context.Background()

	all, err := svc.ListPastes(ctx, "alice", FilterAll)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	for _, p := range all {
		assert.Empty(t, p.Password)
	}

	public, err := svc.ListPastes(ctx, "alice", FilterPublic)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "public one", public[0].Content)

	protected, err := svc.ListPastes(ctx, "alice", FilterProtected)
	require.NoError(t, err)
	require.Len(t, protected, 1)
	assert.Equal(t, "locked one", protected[0].Content)

	_, err = svc.ListPastes(ctx, "alice", "bogus")
	assert.Error(t, err)
}
