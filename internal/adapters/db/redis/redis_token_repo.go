package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	refreshPrefix = "rt:"
	accessPrefix  = "a:"
)

type RedisTokenRepo struct {
	client *redis.Client
}

func NewRedisTokenRepo(client *redis.Client) *RedisTokenRepo {
	return &RedisTokenRepo{
		client: client,
	}
}

func (r *RedisTokenRepo) Store(ctx context.Context, jti string, exp time.Time) error {
	return r.client.Set(ctx, refreshPrefix+jti, "0", safeTTL(exp)).Err() // "0" = active
}

func (r *RedisTokenRepo) Revoke(ctx context.Context, jti string, exp time.Time) error {
	return r.client.Set(ctx, refreshPrefix+jti, "1", safeTTL(exp)).Err()
}

func (r *RedisTokenRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	val, err := r.client.Get(ctx, refreshPrefix+jti).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil // unknown jti is not revoked
	case err != nil:
		return true, err // fail closed
	default:
		return val == "1", nil
	}
}

func (r *RedisTokenRepo) RevokeAccess(ctx context.Context, jti string, exp time.Time) error {
	return r.client.Set(ctx, accessPrefix+jti, 1, safeTTL(exp)).Err()
}

func (r *RedisTokenRepo) IsAccessRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, accessPrefix+jti).Result()
	return n > 0, err
}

func safeTTL(exp time.Time) time.Duration {
	ttl := time.Until(exp)
	if ttl <= 0 {
		// keep a minimal TTL so the key still expires
		return time.Hour
	}
	return ttl
}
