package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-stock-ledger/internal/events"
	kafkax "github.com/ariefcatur/go-stock-ledger/internal/kafka"
	"github.com/ariefcatur/go-stock-ledger/internal/ledger"
	"github.com/ariefcatur/go-stock-ledger/internal/redisx"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func movementMessage(t *testing.T, productID string, stockAfter int) (kafkago.Message, events.Envelope) {
	t.Helper()
	env, err := events.New(context.Background(), ledger.EventMovementRecorded, "test", productID, ledger.MovementRecordedPayload{
		MovementID: "m-" + productID, ProductID: productID, Type: "OUT", Quantity: 1, StockAfter: stockAfter,
	})
	require.NoError(t, err)
	b, err := kafkax.Marshal(env)
	require.NoError(t, err)
	return kafkago.Message{Topic: ledger.TopicMovementRecorded, Key: []byte(productID), Value: b}, env
}

func TestLowStockAlerts(t *testing.T) {
	ctx := context.Background()
	rdb := newRedis(t)
	a := &LowStockAlerts{Redis: rdb, Threshold: 5, Service: "worker", Log: zap.NewNop()}

	low, _ := movementMessage(t, "p1", 2)
	require.NoError(t, a.HandleMovementRecorded(ctx, low))
	fine, _ := movementMessage(t, "p2", 9)
	require.NoError(t, a.HandleMovementRecorded(ctx, fine))

	board, err := redisx.LowStockBoard(ctx, rdb, 10)
	require.NoError(t, err)
	assert.Equal(t, []redisx.LowStockEntry{{ProductID: "p1", Stock: 2}}, board)

	recovered, _ := movementMessage(t, "p1", 12)
	require.NoError(t, a.HandleMovementRecorded(ctx, recovered))
	board, err = redisx.LowStockBoard(ctx, rdb, 10)
	require.NoError(t, err)
	assert.Empty(t, board)
}

func TestLowStockAlertsSkipsRedelivery(t *testing.T) {
	ctx := context.Background()
	rdb := newRedis(t)
	a := &LowStockAlerts{Redis: rdb, Threshold: 5, Service: "worker", Log: zap.NewNop()}

	msg, env := movementMessage(t, "p1", 1)
	require.NoError(t, a.HandleMovementRecorded(ctx, msg))
	require.NoError(t, redisx.ClearLowStock(ctx, rdb, "p1"))

	require.NoError(t, a.HandleMovementRecorded(ctx, msg))
	board, err := redisx.LowStockBoard(ctx, rdb, 10)
	require.NoError(t, err)
	assert.Empty(t, board, "a redelivered event is not applied twice")

	first, err := redisx.MarkOnce(ctx, rdb, "worker", env.EventID)
	require.NoError(t, err)
	assert.False(t, first)
}

func TestLowStockAlertsIgnoresForeignMessages(t *testing.T) {
	ctx := context.Background()
	a := &LowStockAlerts{Redis: newRedis(t), Threshold: 5, Service: "worker", Log: zap.NewNop()}

	assert.NoError(t, a.HandleMovementRecorded(ctx, kafkago.Message{Value: []byte("not json")}))

	env, err := events.New(ctx, "OrderCreated", "test", "o1", map[string]string{})
	require.NoError(t, err)
	b, err := kafkax.Marshal(env)
	require.NoError(t, err)
	assert.NoError(t, a.HandleMovementRecorded(ctx, kafkago.Message{Value: b}))
}

type releaser struct {
	calls int
	n     int
	err   error
}

func (r *releaser) ReleaseExpired(context.Context) (int, error) {
	r.calls++
	return r.n, r.err
}

func TestSweepHonoursLease(t *testing.T) {
	ctx := context.Background()
	rdb := newRedis(t)
	locker := redislock.New(rdb)
	r := &releaser{n: 3}
	s := &Sweeper{Orders: r, Locker: locker, Interval: time.Minute, Log: zap.NewNop()}

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	held, ok, err := redisx.TryLease(ctx, locker, sweeperLease, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	n, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, r.calls)
	require.NoError(t, held.Release(ctx))
}

func TestSweepWithoutLocker(t *testing.T) {
	r := &releaser{err: errors.New("db down")}
	s := &Sweeper{Orders: r, Interval: time.Minute, Log: zap.NewNop()}
	_, err := s.Sweep(context.Background())
	assert.Error(t, err)
}
