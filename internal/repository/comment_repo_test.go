package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/socialtinder/internal/db"
	"github.com/oggyb/socialtinder/internal/repository"
	"github.com/oggyb/socialtinder/internal/testutil"
)

func TestDeleteWithRepliesRemovesWholeThread(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	users := seedUsers(t, gdb, 2)
	repo := repository.NewCommentRepository(gdb)

	post := db.Post{UserID: users[0].ID, Content: "post", IsPublic: true}
	require.NoError(t, gdb.Create(&post).Error)

	add := func(parent *db.PostComment, content string) *db.PostComment {
		c := &db.PostComment{PostID: post.ID, UserID: users[1].ID, Content: content}
		if parent != nil {
			c.ParentID = &parent.ID
		}
		require.NoError(t, repo.Create(ctx, c))
		return c
	}
	root := add(nil, "root")
	reply := add(root, "reply")
	add(reply, "reply to reply")
	add(root, "second reply")
	other := add(nil, "other thread")
	add(other, "kept reply")

	require.NoError(t, repo.DeleteWithReplies(ctx, root.ID))

	var left []db.PostComment
	require.NoError(t, gdb.Order("id").Find(&left).Error)
	require.Len(t, left, 2)
	assert.Equal(t, "other thread", left[0].Content)
	assert.Equal(t, "kept reply", left[1].Content)
}
