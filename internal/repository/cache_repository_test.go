package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestReportCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	cache := NewReportCache(client)

	_, ok, err := cache.GetSummary(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.SetSummary(ctx, []byte(`{"totalTickets":3}`), time.Minute))
	payload, ok, err := cache.GetSummary(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"totalTickets":3}`, string(payload))

	mr.FastForward(2 * time.Minute)
	_, ok, err = cache.GetSummary(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReportCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	cache := NewReportCache(client)

	require.NoError(t, cache.SetSummary(ctx, []byte("x"), time.Minute))
	require.NoError(t, cache.InvalidateSummary(ctx))
	_, ok, err := cache.GetSummary(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReportCacheZeroTTLSkipsWrite(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	cache := NewReportCache(client)

	require.NoError(t, cache.SetSummary(ctx, []byte("x"), 0))
	_, ok, err := cache.GetSummary(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReportCacheWithoutRedis(t *testing.T) {
	ctx := context.Background()
	cache := NewReportCache(nil)
	require.NoError(t, cache.SetSummary(ctx, []byte("x"), time.Minute))
	_, ok, err := cache.GetSummary(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, cache.InvalidateSummary(ctx))
}

func TestScanLockExclusive(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	lock := NewScanLock(client)

	release, ok, err := lock.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	assert.False(t, mr.Exists(slaScanLockKey))

	release2, ok, err := lock.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}

func TestScanLockReleaseKeepsForeignToken(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	lock := NewScanLock(client)

	release, ok, err := lock.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	require.NoError(t, mr.Set(slaScanLockKey, "someone-else"))

	release()
	value, err := mr.Get(slaScanLockKey)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", value)
}

func TestScanLockWithoutRedis(t *testing.T) {
	release, ok, err := NewScanLock(nil).Acquire(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}
