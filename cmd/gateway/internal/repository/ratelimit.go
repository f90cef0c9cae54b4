package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ RateLimiter = (*RedisRateLimiter)(nil)

var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RedisRateLimiter is a fixed-window counter per IP, shared by every gateway
// instance on the same Redis.
type RedisRateLimiter struct {
	client  *redis.Client
	limit   int64
	window  time.Duration
	timeout time.Duration
}

func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:  client,
		limit:   int64(limit),
		window:  window,
		timeout: 500 * time.Millisecond,
	}
}

// Allow counts a hit for ip. The counter and its expiry run as one script,
// and a counter left without a TTL gets one on the next hit.
func (l *RedisRateLimiter) Allow(ip string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	key := "ratelimit:" + ip

	n, err := hitScript.Run(ctx, l.client, []string{key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", ip, err)
	}
	return n <= l.limit, nil
}
