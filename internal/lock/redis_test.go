package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisLocker_NilClient(t *testing.T) {
	_, err := NewRedisLocker(nil, "astroline:")
	assert.Error(t, err)
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-redis-url")
	assert.Error(t, err)
}

// setupRedisLocker はTEST_REDIS_URLのRedisに接続する。未設定の場合はスキップする。
func setupRedisLocker(t *testing.T) *RedisLocker {
	t.Helper()

	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL が未設定のためスキップ")
	}

	client, err := NewRedisClient(context.Background(), redisURL)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	l, err := NewRedisLocker(client, "astroline-test:"+uuid.New().String()+":")
	require.NoError(t, err)
	return l
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	l := setupRedisLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "quota:u1:love_sketch", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "quota:u1:love_sketch", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, release(ctx))

	again, err := l.Acquire(ctx, "quota:u1:love_sketch", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestRedisLocker_TTLExpires(t *testing.T) {
	l := setupRedisLocker(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "provision:ttl@example.com", 100*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)

	release, err := l.Acquire(ctx, "provision:ttl@example.com", time.Minute)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}
