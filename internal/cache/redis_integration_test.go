//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/oggyb/socialtinder/internal/cache"
)

// RedisCacheSuite runs the revocation store against a real Redis.
type RedisCacheSuite struct {
	suite.Suite
	container testcontainers.Container
	client    *redis.Client
	cache     *cache.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	s.Require().NoError(err, "start redis container")
	s.container = container

	uri, err := container.ConnectionString(ctx)
	s.Require().NoError(err)
	opts, err := redis.ParseURL(uri)
	s.Require().NoError(err)

	s.client = redis.NewClient(opts)
	s.cache = cache.NewFromClient(s.client)
	s.Require().NoError(s.cache.Ping(ctx))
}

func (s *RedisCacheSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.client.FlushAll(context.Background()).Err())
}

func (s *RedisCacheSuite) TestRevokedTokenExpires() {
	ctx := context.Background()
	s.Require().NoError(s.cache.RevokeToken(ctx, "jti-1", 2*time.Second))

	revoked, err := s.cache.IsTokenRevoked(ctx, "jti-1")
	s.Require().NoError(err)
	s.True(revoked)

	ttl, err := s.client.TTL(ctx, s.cache.KeyForRevokedToken("jti-1")).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))

	s.Eventually(func() bool {
		revoked, err := s.cache.IsTokenRevoked(ctx, "jti-1")
		return err == nil && !revoked
	}, 5*time.Second, 100*time.Millisecond)
}

func (s *RedisCacheSuite) TestUnknownTokenIsNotRevoked() {
	revoked, err := s.cache.IsTokenRevoked(context.Background(), "never-seen")
	s.Require().NoError(err)
	s.False(revoked)
}
