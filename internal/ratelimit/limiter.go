// Package ratelimit counts requests per client in fixed windows.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bluele/gcache"

	redisrepo "skillswap-auth/internal/repository/redis"
)

const memoryCacheSize = 100000

// Result describes one counted request
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

func newResult(limit, count int, resetAfter time.Duration) Result {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:    count <= limit,
		Limit:      limit,
		Remaining:  remaining,
		ResetAfter: resetAfter,
	}
}

// RedisLimiter shares counters across instances through Redis
type RedisLimiter struct {
	cache  *redisrepo.RateLimitCache
	limit  int
	window time.Duration
}

func NewRedisLimiter(cache *redisrepo.RateLimitCache, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{cache: cache, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	count, ttl, err := l.cache.IncrementCounter(ctx, key, l.window)
	if err != nil {
		return Result{}, err
	}
	return newResult(l.limit, count, ttl), nil
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps counters in an in-process LRU; suitable for one instance
type MemoryLimiter struct {
	mu     sync.Mutex
	cache  gcache.Cache
	clock  gcache.Clock
	limit  int
	window time.Duration
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return NewMemoryLimiterWithClock(limit, window, gcache.NewRealClock())
}

func NewMemoryLimiterWithClock(limit int, window time.Duration, clock gcache.Clock) *MemoryLimiter {
	return &MemoryLimiter{
		cache:  gcache.New(memoryCacheSize).LRU().Clock(clock).Build(),
		clock:  clock,
		limit:  limit,
		window: window,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	w := window{resetAt: now.Add(l.window)}
	if v, err := l.cache.Get(key); err == nil {
		if stored, ok := v.(window); ok && stored.resetAt.After(now) {
			w = stored
		}
	}
	w.count++

	ttl := w.resetAt.Sub(now)
	if err := l.cache.SetWithExpire(key, w, ttl); err != nil {
		return Result{}, fmt.Errorf("failed to store rate limit window: %w", err)
	}
	return newResult(l.limit, w.count, ttl), nil
}
