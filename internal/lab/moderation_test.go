package lab

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/store"
	"github.com/pastejet/pastejet/internal/store/memstore"
)

func putMember(t *testing.T, st store.Store, userID string, role domain.MemberRole) {
	t.Helper()

	data, err := store.Encode(domain.Member{
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	data["room_id"] = testRoom
	require.NoError(t, st.Put(context.Background(), store.RoomMembers, testRoom+":"+userID, data))
}

func mutedUsers(t *testing.T, st store.Store) []string {
	t.Helper()

	doc, err := st.Get(context.Background(), store.Rooms, testRoom)
	require.NoError(t, err)
	var room domain.Room
	require.NoError(t, doc.Decode(&room))
	return room.MutedUsers
}

func TestToggleMuteUserRoundTrip(t *testing.T) {
	st := memstore.New()
	putRoom(t, st, "alice")
	ctx := context.Background()
	mod := NewModerator(st, testRoom)

	require.NoError(t, mod.ToggleMuteUser(ctx, "alice", "bob"))
	assert.Equal(t, []string{"bob"}, mutedUsers(t, st))

	require.NoError(t, mod.ToggleMuteUser(ctx, "alice", "bob"))
	assert.Empty(t, mutedUsers(t, st))
}

func TestModerationIsOwnerOnly(t *testing.T) {
	st := memstore.New()
	putRoom(t, st, "alice")
	ctx := context.Background()
	mod := NewModerator(st, testRoom)

	assert.ErrorIs(t, mod.ToggleMuteUser(ctx, "bob", "carol"), domain.ErrNotOwner)
	assert.ErrorIs(t, mod.MuteAll(ctx, "bob"), domain.ErrNotOwner)
	assert.ErrorIs(t, mod.UnmuteAll(ctx, "bob"), domain.ErrNotOwner)
	assert.Empty(t, mutedUsers(t, st))
}

func TestMuteAllExcludesOwner(t *testing.T) {
	st := memstore.New()
	putRoom(t, st, "alice")
	ctx := context.Background()

	putMember(t, st, "alice", domain.RoleOwner)
	putMember(t, st, "bob", domain.RoleMember)
	putMember(t, st, "carol", domain.RoleMember)

	mod := NewModerator(st, testRoom)
	require.NoError(t, mod.MuteAll(ctx, "alice"))

	assert.ElementsMatch(t, []string{"bob", "carol"}, mutedUsers(t, st))
}

func TestUnmuteAllClearsList(t *testing.T) {
	st := memstore.New()
	putRoom(t, st, "alice")
	ctx := context.Background()

	putMember(t, st, "alice", domain.RoleOwner)
	putMember(t, st, "bob", domain.RoleMember)

	mod := NewModerator(st, testRoom)
	require.NoError(t, mod.MuteAll(ctx, "alice"))
	require.NotEmpty(t, mutedUsers(t, st))

	require.NoError(t, mod.UnmuteAll(ctx, "alice"))
	assert.Empty(t, mutedUsers(t, st))
}

func TestModerationUnknownRoom(t *testing.T) {
	st := memstore.New()
	mod := NewModerator(st, "NOSUCH")

	assert.ErrorIs(t, mod.ToggleMuteUser(context.Background(), "alice", "bob"), domain.ErrRoomNotFound)
}
