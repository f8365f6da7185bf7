package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/db"
	"github.com/oggyb/socialtinder/internal/repository"
	"github.com/oggyb/socialtinder/internal/testutil"
)

func seedUsers(t *testing.T, gdb *gorm.DB, n int) []db.User {
	t.Helper()
	users := make([]db.User, 0, n)
	for i := 0; i < n; i++ {
		u := db.User{
			Name:         "user",
			Email:        uuid.NewString() + "@example.com",
			PasswordHash: "x",
			Country:      "NL",
		}
		require.NoError(t, gdb.Create(&u).Error)
		users = append(users, u)
	}
	return users
}

func TestLikeUpsertOverwritesAction(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := repository.NewLikeRepository(gdb)

	// insert like
	like, err := repo.Upsert(ctx, 1, 2, db.LikeActionLike)
	require.NoError(t, err)
	assert.NotZero(t, like.ID)

	// overwrite with dislike
	again, err := repo.Upsert(ctx, 1, 2, db.LikeActionDislike)
	require.NoError(t, err)
	assert.Equal(t, like.ID, again.ID)
	assert.Equal(t, db.LikeActionDislike, again.Action)

	var count int64
	gdb.Model(&db.UserLike{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestHasLikedIgnoresDislikes(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewLikeRepository(testutil.NewDB(t))

	_, _ = repo.Upsert(ctx, 1, 99, db.LikeActionLike)
	_, _ = repo.Upsert(ctx, 2, 99, db.LikeActionDislike)

	ok, err := repo.HasLiked(ctx, 1, 99)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.HasLiked(ctx, 2, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := repo.CountLikers(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLikedSets(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewLikeRepository(testutil.NewDB(t))

	// 1 likes 2 and 3, 3 likes 1 back
	_, _ = repo.Upsert(ctx, 1, 2, db.LikeActionLike)
	_, _ = repo.Upsert(ctx, 1, 3, db.LikeActionLike)
	_, _ = repo.Upsert(ctx, 3, 1, db.LikeActionLike)
	_, _ = repo.Upsert(ctx, 4, 1, db.LikeActionDislike)

	liked, err := repo.LikedSet(ctx, 1, []uint64{2, 4})
	require.NoError(t, err)
	assert.Equal(t, map[uint64]bool{2: true}, liked)

	likedBy, err := repo.LikedBySet(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, map[uint64]bool{3: true}, likedBy)
}

func TestMatchActivateAndDeactivate(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	users := seedUsers(t, gdb, 2)
	a, b := users[0].ID, users[1].ID
	repo := repository.NewLikeRepository(gdb)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.ActivateMatch(ctx, a, b, now))
	// idempotent
	require.NoError(t, repo.ActivateMatch(ctx, a, b, now.Add(time.Minute)))

	matches, err := repo.Matches(ctx, a)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, b, matches[0].MatchedUserID)
	require.NotNil(t, matches[0].MatchedUser)

	set, err := repo.MatchedSet(ctx, b, nil)
	require.NoError(t, err)
	assert.True(t, set[a])

	had, err := repo.DeactivateMatch(ctx, b, a)
	require.NoError(t, err)
	assert.True(t, had)

	had, err = repo.DeactivateMatch(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, had)

	matches, err = repo.Matches(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, matches)

	var rows int64
	gdb.Model(&db.Match{}).Count(&rows)
	assert.Equal(t, int64(2), rows, "deactivation keeps the rows")
}

func TestDeleteReportsRows(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewLikeRepository(testutil.NewDB(t))

	_, _ = repo.Upsert(ctx, 1, 2, db.LikeActionLike)

	n, err := repo.Delete(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.Delete(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
