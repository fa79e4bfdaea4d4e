package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/go-stock-ledger/internal/apperr"
	"github.com/ariefcatur/go-stock-ledger/internal/events"
	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/ariefcatur/go-stock-ledger/internal/store"
	"github.com/ariefcatur/go-stock-ledger/internal/store/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newLedger(t *testing.T, opts ...Option) (*Service, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(st, opts...), st
}

func seed(t *testing.T, st *memstore.Store, id string, cost *decimal.Decimal) {
	t.Helper()
	p := &model.Product{ID: id, Name: "Product " + id, Code: "CODE-" + id, Price: decimal.NewFromInt(10)}
	if cost != nil {
		p.Cost = decimal.NewNullDecimal(*cost)
	}
	require.NoError(t, st.InsertProduct(context.Background(), p))
}

func stockOf(t *testing.T, st *memstore.Store, id string) int {
	t.Helper()
	p, err := st.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestRecordMovementInAndOut(t *testing.T) {
	ctx := context.Background()
	rec := events.NewRecorder(8)
	svc, st := newLedger(t, WithPublisher(rec))
	seed(t, st, "p1", nil)

	_, err := svc.RecordMovement(ctx, MovementInput{ProductID: "p1", Type: model.MovementIn, Quantity: 10})
	require.NoError(t, err)
	m, err := svc.RecordMovement(ctx, MovementInput{ProductID: "p1", Type: model.MovementOut, Quantity: 4, Reference: "counted"})
	require.NoError(t, err)

	assert.Equal(t, model.SourceManual, m.Source)
	assert.Equal(t, fixedNow, m.CreatedAt)
	assert.Equal(t, 6, stockOf(t, st, "p1"))

	r, err := svc.Reconcile(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, Reconciliation{ProductID: "p1", Stock: 6, In: 10, Out: 4, Net: 6, Balanced: true}, *r)

	pub := rec.Drain()
	require.Len(t, pub, 2)
	assert.Equal(t, TopicMovementRecorded, pub[1].Topic)
	assert.Equal(t, "p1", pub[1].Key)
	payload, err := events.Decode[MovementRecordedPayload](pub[1].Env)
	require.NoError(t, err)
	assert.Equal(t, 6, payload.StockAfter)
	assert.Equal(t, "counted", payload.Reference)
}

func TestRecordMovementRejectsOverdraw(t *testing.T) {
	ctx := context.Background()
	rec := events.NewRecorder(8)
	svc, st := newLedger(t, WithPublisher(rec))
	seed(t, st, "p1", nil)
	_, err := svc.RecordMovement(ctx, MovementInput{ProductID: "p1", Type: model.MovementIn, Quantity: 3})
	require.NoError(t, err)
	rec.Drain()

	_, err = svc.RecordMovement(ctx, MovementInput{ProductID: "p1", Type: model.MovementOut, Quantity: 5})
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindInsufficientStock, e.Kind)
	require.NotNil(t, e.Shortage)
	assert.Equal(t, 3, e.Shortage.Available)
	assert.Equal(t, 5, e.Shortage.Requested)

	assert.Equal(t, 3, stockOf(t, st, "p1"))
	assert.Empty(t, rec.Drain())
	_, total, err := st.ListMovements(ctx, storeFilterAll())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestRecordMovementValidation(t *testing.T) {
	ctx := context.Background()
	svc, st := newLedger(t)
	seed(t, st, "p1", nil)
	neg := decimal.NewFromInt(-1)

	cases := map[string]MovementInput{
		"bad type":      {ProductID: "p1", Type: "SIDEWAYS", Quantity: 1},
		"zero quantity": {ProductID: "p1", Type: model.MovementIn},
		"negative qty":  {ProductID: "p1", Type: model.MovementIn, Quantity: -2},
		"negative cost": {ProductID: "p1", Type: model.MovementIn, Quantity: 1, UnitCost: &neg},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.RecordMovement(ctx, in)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}

	_, err := svc.RecordMovement(ctx, MovementInput{ProductID: "ghost", Type: model.MovementIn, Quantity: 1})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestUnitCostDefaultsToProductCost(t *testing.T) {
	ctx := context.Background()
	svc, st := newLedger(t)
	cost := decimal.RequireFromString("6.25")
	seed(t, st, "with-cost", &cost)
	seed(t, st, "no-cost", nil)

	m, err := svc.RecordMovement(ctx, MovementInput{ProductID: "with-cost", Type: model.MovementIn, Quantity: 2})
	require.NoError(t, err)
	assert.True(t, m.UnitCost.Equal(cost))

	m, err = svc.RecordMovement(ctx, MovementInput{ProductID: "no-cost", Type: model.MovementIn, Quantity: 2})
	require.NoError(t, err)
	assert.True(t, m.UnitCost.IsZero())

	explicit := decimal.RequireFromString("7")
	m, err = svc.RecordMovement(ctx, MovementInput{ProductID: "with-cost", Type: model.MovementIn, Quantity: 1, UnitCost: &explicit})
	require.NoError(t, err)
	assert.True(t, m.UnitCost.Equal(explicit))
}

func TestConcurrentOutsNeverOversell(t *testing.T) {
	ctx := context.Background()
	svc, st := newLedger(t)
	seed(t, st, "p1", nil)
	_, err := svc.RecordMovement(ctx, MovementInput{ProductID: "p1", Type: model.MovementIn, Quantity: 10})
	require.NoError(t, err)

	const workers, qty = 25, 3
	var (
		wg   sync.WaitGroup
		ok   atomic.Int32
		fail atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordMovement(ctx, MovementInput{ProductID: "p1", Type: model.MovementOut, Quantity: qty})
			switch {
			case err == nil:
				ok.Add(1)
			case apperr.Is(err, apperr.KindInsufficientStock):
				fail.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10/qty), ok.Load())
	assert.Equal(t, int32(workers-10/qty), fail.Load())
	assert.Equal(t, 10-qty*(10/qty), stockOf(t, st, "p1"))

	r, err := svc.Reconcile(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, r.Balanced)
}

func TestRecordMovementOnlyLeavesStock(t *testing.T) {
	ctx := context.Background()
	svc, st := newLedger(t)
	seed(t, st, "p1", nil)
	_, err := svc.RecordMovement(ctx, MovementInput{ProductID: "p1", Type: model.MovementIn, Quantity: 4})
	require.NoError(t, err)

	m, err := svc.RecordMovementOnly(ctx, MovementInput{ProductID: "p1", Type: model.MovementOut, Quantity: 9, Source: model.SourceManual})
	require.NoError(t, err)
	assert.Equal(t, model.SourceRecordOnly, m.Source)
	assert.Equal(t, 4, stockOf(t, st, "p1"))

	r, err := svc.Reconcile(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, r.Balanced)
	assert.Equal(t, 0, r.Out)
}

func TestListFiltersByTypeAndDay(t *testing.T) {
	ctx := context.Background()
	now := fixedNow
	svc, st := newLedger(t)
	svc.now = func() time.Time { return now }
	seed(t, st, "p1", nil)

	_, err := svc.RecordMovement(ctx, MovementInput{ProductID: "p1", Type: model.MovementIn, Quantity: 5})
	require.NoError(t, err)
	now = fixedNow.AddDate(0, 0, 1)
	_, err = svc.RecordMovement(ctx, MovementInput{ProductID: "p1", Type: model.MovementOut, Quantity: 1})
	require.NoError(t, err)
	now = now.Add(time.Hour)
	_, err = svc.RecordMovement(ctx, MovementInput{ProductID: "p1", Type: model.MovementIn, Quantity: 2})
	require.NoError(t, err)

	all, err := svc.List(ctx, MovementQuery{})
	require.NoError(t, err)
	require.Len(t, all.Data, 3)
	assert.Equal(t, 2, all.Data[0].Quantity, "newest first")
	assert.Equal(t, 20, all.Limit)

	ins, err := svc.List(ctx, MovementQuery{Type: "IN"})
	require.NoError(t, err)
	assert.Equal(t, 2, ins.Total)

	day, err := svc.List(ctx, MovementQuery{Date: "2026-03-15"})
	require.NoError(t, err)
	assert.Equal(t, 2, day.Total)

	_, err = svc.List(ctx, MovementQuery{Type: "both"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.List(ctx, MovementQuery{Date: "15-03-2026"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestTotalInventoryValue(t *testing.T) {
	ctx := context.Background()
	svc, st := newLedger(t)
	cost := decimal.RequireFromString("4.50")
	seed(t, st, "a", &cost)
	seed(t, st, "b", nil)
	seed(t, st, "c", nil)

	_, err := svc.RecordMovement(ctx, MovementInput{ProductID: "a", Type: model.MovementIn, Quantity: 2})
	require.NoError(t, err)
	_, err = svc.RecordMovement(ctx, MovementInput{ProductID: "b", Type: model.MovementIn, Quantity: 3})
	require.NoError(t, err)

	v, err := svc.TotalInventoryValue(ctx)
	require.NoError(t, err)
	require.Len(t, v.Items, 2)
	assert.Equal(t, "a", v.Items[0].ProductID)
	assert.True(t, v.Items[0].Value.Equal(decimal.NewFromInt(9)))
	assert.True(t, v.Items[1].UnitValue.Equal(decimal.NewFromInt(10)), "price when cost is missing")
	assert.True(t, v.Total.Equal(decimal.NewFromInt(39)))
}

func storeFilterAll() store.MovementFilter {
	return store.MovementFilter{Page: model.Page{Page: 1, Limit: model.MaxPageLimit}}
}

// lockSpy records the product locks taken inside units of work.
type lockSpy struct {
	store.Store
	mu     sync.Mutex
	locked []string
}

type lockSpyQuerier struct {
	store.Querier
	spy *lockSpy
}

func (s *lockSpy) InTx(ctx context.Context, fn func(q store.Querier) error) error {
	return s.Store.InTx(ctx, func(q store.Querier) error { return fn(lockSpyQuerier{Querier: q, spy: s}) })
}

func (q lockSpyQuerier) LockProducts(ctx context.Context, ids []string) error {
	q.spy.mu.Lock()
	q.spy.locked = append(q.spy.locked, ids...)
	q.spy.mu.Unlock()
	return q.Querier.LockProducts(ctx, ids)
}

func TestReconcileLocksProduct(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seed(t, st, "p1", nil)
	spy := &lockSpy{Store: st}
	svc := New(spy, WithClock(func() time.Time { return fixedNow }))

	_, err := svc.RecordMovement(ctx, MovementInput{ProductID: "p1", Type: model.MovementIn, Quantity: 3})
	require.NoError(t, err)
	spy.locked = nil

	r, err := svc.Reconcile(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, r.Balanced)
	assert.Equal(t, []string{"p1"}, spy.locked)

	_, err = svc.Reconcile(ctx, "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestManualOutLeavesReservedStock(t *testing.T) {
	ctx := context.Background()
	svc, st := newLedger(t)
	seed(t, st, "p1", nil)
	_, err := svc.RecordMovement(ctx, MovementInput{ProductID: "p1", Type: model.MovementIn, Quantity: 10})
	require.NoError(t, err)
	require.NoError(t, st.InsertReservations(ctx, []model.Reservation{
		{ID: "r1", OrderID: "o1", ProductID: "p1", Quantity: 7, Status: model.ReservationReserved, ExpiresAt: fixedNow.Add(time.Minute)},
		{ID: "r2", OrderID: "o2", ProductID: "p1", Quantity: 5, Status: model.ReservationReserved, ExpiresAt: fixedNow.Add(-time.Minute)},
	}))

	_, err = svc.RecordMovement(ctx, MovementInput{ProductID: "p1", Type: model.MovementOut, Quantity: 4})
	e, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.KindInsufficientStock, e.Kind)
	assert.Equal(t, 3, e.Shortage.Available)
	assert.Equal(t, 10, stockOf(t, st, "p1"))

	_, err = svc.RecordMovement(ctx, MovementInput{ProductID: "p1", Type: model.MovementOut, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, 7, stockOf(t, st, "p1"))

	// Order fulfilment consumes its own reservation and is not held back by it.
	_, err = svc.RecordMovement(ctx, MovementInput{ProductID: "p1", Type: model.MovementOut, Quantity: 7, Source: model.SourceOrder, Reference: "o1"})
	require.NoError(t, err)
	assert.Equal(t, 0, stockOf(t, st, "p1"))
}
