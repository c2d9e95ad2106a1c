package api

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"stockpot/internal/auth"
)

const revokedRefreshKeyPrefix = "auth:refresh:blacklist:"

// refreshRevocations remembers refresh token ids that must not be used again,
// each until the token would have expired anyway.
type refreshRevocations struct {
	redis    redis.UniversalClient
	fallback time.Duration
}

func (r refreshRevocations) revoked(ctx context.Context, claims *auth.Claims) (bool, error) {
	err := r.redis.Get(ctx, revokedRefreshKeyPrefix+claims.ID).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}

func (r refreshRevocations) revoke(ctx context.Context, claims *auth.Claims) error {
	ttl := r.fallback
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return r.redis.Set(ctx, revokedRefreshKeyPrefix+claims.ID, "revoked", ttl).Err()
}
