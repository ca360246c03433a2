// Package ratelimit implements a Redis-backed fixed-window request limiter.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// fixedWindow counts hits in KEYS[1] and starts the window on the first hit.
// It returns the count and the remaining window in milliseconds.
var fixedWindow = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisLimiter allows limit hits per key per window.
type RedisLimiter struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(rdb redis.Scripter, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, prefix: "vidshare:rl:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := fixedWindow.Run(ctx, l.rdb, []string{l.prefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}

	count := int(res[0])
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetIn:   time.Duration(res[1]) * time.Millisecond,
	}, nil
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
