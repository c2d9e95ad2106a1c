package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	errLoginThrottled = errors.New("rate limit exceeded")
	errLoginLocked    = errors.New("account temporarily locked")
)

// LoginProtection configures login throttling and lockout.
type LoginProtection struct {
	RateLimitPerHour int
	LockThreshold    int
	LockTTL          time.Duration
}

// counterStore is the subset of redis.UniversalClient used for login counters.
type counterStore interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// loginGuard throttles login attempts per client and username and locks a
// username after repeated failures. Counters live in Redis.
type loginGuard struct {
	redis  redis.UniversalClient
	limits LoginProtection
}

func loginAttemptKey(clientIP, username string, at time.Time) string {
	return "rate:login:" + clientIP + ":" + username + ":" + at.UTC().Format("2006010215")
}

func loginFailKey(username string) string { return "lock:login:fail:" + username }
func loginLockKey(username string) string { return "lock:login:" + username }

func normalizeLoginName(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// admit counts an attempt and reports errLoginThrottled or errLoginLocked when
// it must be refused. A Redis failure is returned separately and does not block.
func (g loginGuard) admit(ctx context.Context, clientIP, username string) (blocked, storeErr error) {
	username = normalizeLoginName(username)

	attempts, err := incrWithTTL(ctx, g.redis, loginAttemptKey(clientIP, username, time.Now()), time.Hour)
	if err != nil {
		storeErr = err
	} else if attempts > int64(g.limits.RateLimitPerHour) {
		return errLoginThrottled, nil
	}

	ttl, err := g.redis.TTL(ctx, loginLockKey(username)).Result()
	if err != nil && storeErr == nil {
		storeErr = err
	}
	if ttl > 0 {
		return errLoginLocked, storeErr
	}
	return nil, storeErr
}

// fail records a failed attempt and locks the username at the threshold.
func (g loginGuard) fail(ctx context.Context, username string) error {
	username = normalizeLoginName(username)

	failures, err := incrWithTTL(ctx, g.redis, loginFailKey(username), g.limits.LockTTL)
	if err != nil {
		return err
	}
	if failures < int64(g.limits.LockThreshold) {
		return nil
	}
	return g.redis.Set(ctx, loginLockKey(username), "1", g.limits.LockTTL).Err()
}

// succeed clears the failure counter after a good login.
func (g loginGuard) succeed(ctx context.Context, username string) error {
	return g.redis.Del(ctx, loginFailKey(normalizeLoginName(username))).Err()
}

// incrWithTTL increments key and starts its expiry on the first hit, so each
// counter lives for one window.
func incrWithTTL(ctx context.Context, client counterStore, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 && ttl > 0 {
		if err := client.Expire(ctx, key, ttl).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}
