package paste

import (
	"context"
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
	return NewService(memstore.New(), logging.NewNop(), nil)
}

func TestCreateDefaults(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Content: "hello"})
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, domain.DefaultPasteTitle, p.Title)
	assert.Equal(t, domain.VisibilityPublic, p.Visibility)
	assert.Equal(t, domain.AnonymousUser, p.CreatedBy)
	assert.Nil(t, p.ExpiresAt)
	assert.Zero(t, p.Views)
}

func TestCreateRequiresContent(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), CreateInput{})
	assert.Error(t, err)
}

func TestAnonymousRestrictions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, in := range []CreateInput{
		{Content: "x", CustomURL: "my-slug"},
		{Content: "x", Expiry: "1h"},
		{Content: "x", Visibility: domain.VisibilityUnlisted},
	} {
		_, err := svc.Create(ctx, in)
		assert.ErrorIs(t, err, domain.ErrAnonymousLimited)
	}

	// The same options work for an authenticated owner.
	_, err := svc.Create(ctx, CreateInput{Content: "x", CustomURL: "my-slug", Expiry: "1h", CreatedBy: "alice"})
	require.NoError(t, err)
}

func TestCustomSlug(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Content: "x", CustomURL: "no spaces", CreatedBy: "alice"})
	assert.Error(t, err)

	p, err := svc.Create(ctx, CreateInput{Content: "slugged", CustomURL: "my-paste", CreatedBy: "alice"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{Content: "y", CustomURL: "my-paste", CreatedBy: "bob"})
	assert.ErrorIs(t, err, domain.ErrSlugTaken)

	got, err := svc.Get(ctx, "my-paste", "")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "slugged", got.Content)
}

func TestInvalidExpiry(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), CreateInput{Content: "x", Expiry: "10x", CreatedBy: "alice"})
	assert.ErrorIs(t, err, domain.ErrInvalidExpiry)
}

func TestExpiredPasteIsGone(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Content: "ephemeral", Expiry: "10m", CreatedBy: "alice"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, p.ID, "")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	_, err = svc.Get(ctx, p.ID, "")
	assert.ErrorIs(t, err, domain.ErrPasteExpired)
}

func TestProtectedPaste(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Content: "secret stuff", Password: "pw", CreatedBy: "alice"})
	require.NoError(t, err)

	locked, err := svc.Get(ctx, p.ID, "")
	assert.ErrorIs(t, err, domain.ErrPasteLocked)
	require.NotNil(t, locked)
	assert.Empty(t, locked.Content)
	assert.Empty(t, locked.Password)
	assert.Equal(t, p.Title, locked.Title)

	_, err = svc.Get(ctx, p.ID, "wrong")
	assert.ErrorIs(t, err, domain.ErrPasteLocked)

	got, err := svc.Get(ctx, p.ID, "pw")
	require.NoError(t, err)
	assert.Equal(t, "secret stuff", got.Content)
	assert.Empty(t, got.Password)
}

func TestViewsIncrement(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Content: "counted"})
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		got, err := svc.Get(ctx, p.ID, "")
		require.NoError(t, err)
		assert.Equal(t, int64(i), got.Views)
	}
}

func TestDeleteIsOwnerOnly(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Content: "mine", CreatedBy: "alice"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, p.ID, "bob"), domain.ErrNotOwner)
	require.NoError(t, svc.Delete(ctx, p.ID, "alice"))

	_, err = svc.Get(ctx, p.ID, "")
	assert.ErrorIs(t, err, domain.ErrPasteNotFound)
}

func TestListByOwner(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }
	_, err := svc.Create(ctx, CreateInput{Content: "old", CreatedBy: "alice"})
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(time.Minute) }
	_, err = svc.Create(ctx, CreateInput{Content: "new", Password: "pw", CreatedBy: "alice"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{Content: "other", CreatedBy: "bob"})
	require.NoError(t, err)

	list, err := svc.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].Content)
	assert.Empty(t, list[0].Password)
	assert.Equal(t, "old", list[1].Content)
}
