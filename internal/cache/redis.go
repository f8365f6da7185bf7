package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/socialtinder/internal/config"
)

// RedisCache holds short-lived auth state. Domain data never lives here; the
// database is the only source of truth for it.
type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return NewFromClient(redis.NewClient(opts))
}

// NewFromClient wraps an existing client (miniredis or testcontainers in tests).
func NewFromClient(c *redis.Client) *RedisCache {
	return &RedisCache{Client: c}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// KeyForRevokedToken generates the denylist key for a token id.
func (c *RedisCache) KeyForRevokedToken(jti string) string {
	return fmt.Sprintf("auth:revoked:%s", jti)
}

// RevokeToken denylists a token until it would have expired anyway.
//
// Behavior:
//   - ttl <= 0 means the token is already expired; nothing is written.
//   - Revoking twice just refreshes the TTL.
//
// Example:
//
//	c.RevokeToken(ctx, claims.ID, time.Until(claims.ExpiresAt.Time))
func (c *RedisCache) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.Client.Set(ctx, c.KeyForRevokedToken(jti), 1, ttl).Err()
}

// IsTokenRevoked reports whether the token id is on the denylist.
func (c *RedisCache) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := c.Client.Exists(ctx, c.KeyForRevokedToken(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
