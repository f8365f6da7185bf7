package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/db"
	"github.com/oggyb/socialtinder/internal/repository"
	"github.com/oggyb/socialtinder/internal/testutil"
	"github.com/oggyb/socialtinder/internal/utils/pagination"
)

func TestFindDirectIntersectsParticipants(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	users := seedUsers(t, gdb, 3)
	a, b, c := users[0].ID, users[1].ID, users[2].ID
	repo := repository.NewConversationRepository(gdb)

	// a group containing a and b must not count as their direct thread
	group := db.Conversation{IsGroup: true, GroupName: "g", CreatedBy: a}
	require.NoError(t, repo.CreateWithParticipants(ctx, &group, []uint64{a, b, c}))

	_, err := repo.FindDirect(ctx, a, b)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	key := db.DirectKeyFor(a, b)
	direct := db.Conversation{CreatedBy: a, DirectKey: &key}
	require.NoError(t, repo.CreateWithParticipants(ctx, &direct, []uint64{a, b}))

	got, err := repo.FindDirect(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, direct.ID, got.ID)

	// the unique key rejects a second thread for the pair
	dup := db.Conversation{CreatedBy: b, DirectKey: &key}
	err = repo.CreateWithParticipants(ctx, &dup, []uint64{b, a})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestFindForParticipantHidesFromStrangers(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	users := seedUsers(t, gdb, 3)
	repo := repository.NewConversationRepository(gdb)

	conv := db.Conversation{IsGroup: true, GroupName: "g", CreatedBy: users[0].ID}
	require.NoError(t, repo.CreateWithParticipants(ctx, &conv, []uint64{users[0].ID, users[1].ID}))

	got, err := repo.FindForParticipant(ctx, conv.ID, users[1].ID)
	require.NoError(t, err)
	assert.Len(t, got.Participants, 2)

	_, err = repo.FindForParticipant(ctx, conv.ID, users[2].ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestParticipantIDsKeepJoinOrder(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	users := seedUsers(t, gdb, 4)
	repo := repository.NewConversationRepository(gdb)

	conv := db.Conversation{IsGroup: true, GroupName: "g", CreatedBy: users[0].ID}
	require.NoError(t, repo.CreateWithParticipants(ctx, &conv, []uint64{users[0].ID, users[2].ID}))
	require.NoError(t, repo.AddParticipant(ctx, conv.ID, users[1].ID))

	ids, err := repo.ParticipantIDs(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{users[0].ID, users[2].ID, users[1].ID}, ids)

	err = repo.AddParticipant(ctx, conv.ID, users[1].ID)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	removed, err := repo.RemoveParticipant(ctx, conv.ID, users[2].ID)
	require.NoError(t, err)
	assert.True(t, removed)

	ok, err := repo.IsParticipant(ctx, conv.ID, users[2].ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMessagesUnreadAndLast(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	users := seedUsers(t, gdb, 2)
	a, b := users[0].ID, users[1].ID
	convs := repository.NewConversationRepository(gdb)
	msgs := repository.NewMessageRepository(gdb)

	key := db.DirectKeyFor(a, b)
	conv := db.Conversation{CreatedBy: a, DirectKey: &key}
	require.NoError(t, convs.CreateWithParticipants(ctx, &conv, []uint64{a, b}))

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, msgs.Create(ctx, &db.Message{ConversationID: conv.ID, UserID: a, Content: text}))
	}
	require.NoError(t, msgs.Create(ctx, &db.Message{ConversationID: conv.ID, UserID: b, Content: "reply"}))

	unread, err := msgs.UnreadCounts(ctx, b, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread[conv.ID])

	last, err := msgs.LastMessages(ctx, []uint64{conv.ID})
	require.NoError(t, err)
	assert.Equal(t, "reply", last[conv.ID].Content)

	page, err := msgs.ListByConversation(ctx, conv.ID, pagination.Params{Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, "reply", page.Items[0].Content)

	n, err := msgs.MarkRead(ctx, conv.ID, b)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	unread, err = msgs.UnreadCounts(ctx, b, nil)
	require.NoError(t, err)
	assert.Empty(t, unread)

	require.NoError(t, convs.DeleteCascade(ctx, conv.ID))
	var left int64
	gdb.Model(&db.Message{}).Count(&left)
	assert.Zero(t, left)
}
