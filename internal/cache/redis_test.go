package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/socialtinder/internal/cache"
)

func setupCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestRevokeToken(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)

	revoked, err := c.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, c.RevokeToken(ctx, "jti-1", time.Minute))

	revoked, err = c.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, time.Minute, mr.TTL(c.KeyForRevokedToken("jti-1")))

	// denylist entry disappears once the token would have expired
	mr.FastForward(2 * time.Minute)
	revoked, err = c.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevokeToken_AlreadyExpired(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)

	require.NoError(t, c.RevokeToken(ctx, "jti-2", 0))
	assert.False(t, mr.Exists(c.KeyForRevokedToken("jti-2")))
}

func TestPing(t *testing.T) {
	c, _ := setupCache(t)
	require.NoError(t, c.Ping(context.Background()))
}
