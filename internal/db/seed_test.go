package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/socialtinder/internal/db"
	"github.com/oggyb/socialtinder/internal/logger"
	"github.com/oggyb/socialtinder/internal/testutil"
)

func TestSeedMinimalTestData(t *testing.T) {
	gdb := testutil.NewDB(t)
	require.NoError(t, db.SeedMinimalTestData(gdb))

	var users, likes, matches int64
	gdb.Model(&db.User{}).Count(&users)
	gdb.Model(&db.UserLike{}).Count(&likes)
	gdb.Model(&db.Match{}).Where("is_active = ?", true).Count(&matches)
	assert.Equal(t, int64(3), users)
	assert.Equal(t, int64(4), likes)
	assert.Equal(t, int64(2), matches)
}

func TestSeedTestDataResetsBeforeSeeding(t *testing.T) {
	gdb := testutil.NewDB(t)
	require.NoError(t, db.SeedMinimalTestData(gdb))

	for range 2 {
		require.NoError(t, db.SeedTestData(gdb, logger.Discard()))
	}

	var users, admins, events, tickets, menu int64
	gdb.Model(&db.User{}).Count(&users)
	gdb.Model(&db.User{}).Where("is_admin = ?", true).Count(&admins)
	gdb.Model(&db.Event{}).Count(&events)
	gdb.Model(&db.EventTicket{}).Count(&tickets)
	gdb.Model(&db.MenuItem{}).Count(&menu)
	assert.Equal(t, int64(20), users)
	assert.Equal(t, int64(1), admins)
	assert.Equal(t, int64(1), events)
	assert.Equal(t, int64(2), tickets)
	assert.Equal(t, int64(4), menu)
}
