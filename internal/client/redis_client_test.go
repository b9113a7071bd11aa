package client

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := NewRedisClientFrom(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestRedisHealthCheck(t *testing.T) {
	rc, mr := newTestRedis(t)
	require.NoError(t, rc.HealthCheck(context.Background()))
	assert.False(t, mr.Exists("healthcheck"))
}

func TestRedisEval(t *testing.T) {
	rc, _ := newTestRedis(t)

	res, err := rc.Eval(context.Background(), "return redis.call('INCRBY', KEYS[1], ARGV[1])", []string{"counter"}, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res)
}
