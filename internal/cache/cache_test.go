package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLockerExcludesSecondHolder(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	a := NewRedisLocker(client, "luna")
	b := NewRedisLocker(client, "luna")

	ok, err := a.TryLock(ctx, "reminder:tick", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("luna:lock:reminder:tick"))

	ok, err = b.TryLock(ctx, "reminder:tick", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// b 未持有锁，Unlock 不应删除 a 的锁
	require.NoError(t, b.Unlock(ctx, "reminder:tick"))
	assert.True(t, mr.Exists("luna:lock:reminder:tick"))

	require.NoError(t, a.Unlock(ctx, "reminder:tick"))
	assert.False(t, mr.Exists("luna:lock:reminder:tick"))

	ok, err = b.TryLock(ctx, "reminder:tick", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockerExpires(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	a := NewRedisLocker(client, "luna")
	b := NewRedisLocker(client, "luna")

	ok, err := a.TryLock(ctx, "reminder:tick", 15*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(16 * time.Minute)

	ok, err = b.TryLock(ctx, "reminder:tick", 15*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// a 的锁已过期，释放时不能误删 b 的锁
	require.NoError(t, a.Unlock(ctx, "reminder:tick"))
	assert.True(t, mr.Exists("luna:lock:reminder:tick"))
}

func TestRedisLockerConnectionError(t *testing.T) {
	mr, client := newTestClient(t)
	mr.Close()

	ok, err := NewRedisLocker(client, "luna").TryLock(context.Background(), "reminder:tick", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestMessageTracker(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()
	tracker := NewMessageTracker(client, "luna")

	first, err := tracker.TryMarkProcessing(ctx, "push_1", 0)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := tracker.TryMarkProcessing(ctx, "push_1", 0)
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, tracker.MarkProcessed(ctx, "push_1", 0))
	val, err := mr.Get("luna:msg:processed:push_1")
	require.NoError(t, err)
	assert.Equal(t, "completed", val)
	assert.Equal(t, processedTTL, mr.TTL("luna:msg:processed:push_1"))

	first, err = tracker.TryMarkProcessing(ctx, "push_2", time.Minute)
	require.NoError(t, err)
	require.True(t, first)
	require.NoError(t, tracker.UnmarkProcessing(ctx, "push_2"))

	retry, err := tracker.TryMarkProcessing(ctx, "push_2", time.Minute)
	require.NoError(t, err)
	assert.True(t, retry)
}
