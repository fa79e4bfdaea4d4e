package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestOrderShortcuts(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)

	_, ok, err := LookupOrder(ctx, rdb, "ext-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, RememberOrder(ctx, rdb, "ext-1", "o-1"))
	id, ok, err := LookupOrder(ctx, rdb, "ext-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "o-1", id)

	require.NoError(t, CacheStatus(ctx, rdb, "o-1", []byte(`{"status":"PENDING"}`)))
	b, ok, err := CachedStatus(ctx, rdb, "o-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"status":"PENDING"}`, string(b))

	mr.FastForward(TTLStatusCache + time.Second)
	_, ok, err = CachedStatus(ctx, rdb, "o-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, CacheStatus(ctx, rdb, "o-2", []byte(`{}`)))
	require.NoError(t, DropStatus(ctx, rdb, "o-2"))
	_, ok, err = CachedStatus(ctx, rdb, "o-2")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, Ping(ctx, rdb))
}

func TestMarkOnce(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)

	first, err := MarkOnce(ctx, rdb, "worker", "evt-1")
	require.NoError(t, err)
	assert.True(t, first)
	again, err := MarkOnce(ctx, rdb, "worker", "evt-1")
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, Unmark(ctx, rdb, "worker", "evt-1"))
	first, err = MarkOnce(ctx, rdb, "worker", "evt-1")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestLowStockBoard(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)

	require.NoError(t, FlagLowStock(ctx, rdb, "b", 3))
	require.NoError(t, FlagLowStock(ctx, rdb, "a", 1))
	require.NoError(t, FlagLowStock(ctx, rdb, "c", 4))
	require.NoError(t, FlagLowStock(ctx, rdb, "b", 0))
	require.NoError(t, ClearLowStock(ctx, rdb, "c"))

	board, err := LowStockBoard(ctx, rdb, 10)
	require.NoError(t, err)
	assert.Equal(t, []LowStockEntry{{ProductID: "b", Stock: 0}, {ProductID: "a", Stock: 1}}, board)
}

func TestTryLease(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	locker := redislock.New(rdb)

	lock, ok, err := TryLease(ctx, locker, "sweeper", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = TryLease(ctx, locker, "sweeper", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Release(ctx))
	_, ok, err = TryLease(ctx, locker, "sweeper", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
