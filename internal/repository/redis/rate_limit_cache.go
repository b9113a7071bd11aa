package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"skillswap-auth/internal/client"
	"skillswap-auth/internal/util"
)

const rateLimitPrefix = "rate_limit:"

// fixedWindowScript increments the counter and starts the window on the first hit
const fixedWindowScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {count, ttl}
`

type RateLimitCache struct {
	client *client.RedisClient
}

func NewRateLimitCache(client *client.RedisClient) *RateLimitCache {
	return &RateLimitCache{client: client}
}

// IncrementCounter counts one hit in the fixed window for key and returns the
// count so far and the time left in the window.
func (c *RateLimitCache) IncrementCounter(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rateLimitKey := rateLimitPrefix + key

	result, err := c.client.Eval(ctx, fixedWindowScript, []string{rateLimitKey}, window.Milliseconds())
	if err != nil {
		util.Error("Failed to increment rate limit counter",
			zap.String("key", key),
			zap.Duration("window", window),
			zap.Error(err))
		return 0, 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) != 2 {
		return 0, 0, fmt.Errorf("unexpected result format from rate limit script")
	}
	count, ok1 := resultSlice[0].(int64)
	ttlMillis, ok2 := resultSlice[1].(int64)
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("unexpected result format from rate limit script")
	}
	if ttlMillis < 0 {
		ttlMillis = window.Milliseconds()
	}

	util.Debug("Rate limit counter incremented",
		zap.String("key", key),
		zap.Int64("count", count),
		zap.Int64("ttl_ms", ttlMillis))

	return int(count), time.Duration(ttlMillis) * time.Millisecond, nil
}
