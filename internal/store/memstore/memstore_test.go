package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-stock-ledger/internal/apperr"
	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/ariefcatur/go-stock-ledger/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id, code string, stock int) *model.Product {
	return &model.Product{ID: id, Name: "P " + id, Code: code, Price: decimal.NewFromInt(5), Stock: stock}
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertProduct(ctx, product("p1", "C1", 10)))

	boom := errors.New("boom")
	err := s.InTx(ctx, func(q store.Querier) error {
		if _, _, err := q.AdjustStock(ctx, "p1", -4, time.Now()); err != nil {
			return err
		}
		if err := q.InsertMovement(ctx, &model.Movement{ID: "m1", ProductID: "p1", Type: model.MovementOut, Quantity: 4}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)
	_, total, err := s.ListMovements(ctx, store.MovementFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestInTxDiscardsWorkWhenContextEnds(t *testing.T) {
	s := New()
	require.NoError(t, s.InsertProduct(context.Background(), product("p1", "C1", 10)))

	ctx, cancel := context.WithCancel(context.Background())
	err := s.InTx(ctx, func(q store.Querier) error {
		_, _, err := q.AdjustStock(ctx, "p1", 5, time.Now())
		cancel()
		return err
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	p, _ := s.GetProduct(context.Background(), "p1")
	assert.Equal(t, 10, p.Stock)
}

func TestAdjustStockRefusesNegative(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertProduct(ctx, product("p1", "C1", 3)))

	stock, ok, err := s.AdjustStock(ctx, "p1", -4, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, stock)

	stock, ok, err = s.AdjustStock(ctx, "p1", -3, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, stock)

	_, _, err = s.AdjustStock(ctx, "nope", 1, time.Now())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestProductCodeIsUnique(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertProduct(ctx, product("p1", "C1", 0)))
	require.NoError(t, s.InsertProduct(ctx, product("p2", "C2", 0)))

	err := s.InsertProduct(ctx, product("p3", "C1", 0))
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	code := "C2"
	_, err = s.UpdateProduct(ctx, "p1", model.ProductPatch{Code: &code}, time.Now())
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	code = "C9"
	p, err := s.UpdateProduct(ctx, "p1", model.ProductPatch{Code: &code}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "C9", p.Code)
	require.NoError(t, s.InsertProduct(ctx, product("p4", "C1", 0)))
}

func TestReservationsLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertReservations(ctx, []model.Reservation{
		{ID: "r1", OrderID: "o1", ProductID: "p1", Quantity: 2, Status: model.ReservationReserved, ExpiresAt: now.Add(time.Minute)},
		{ID: "r2", OrderID: "o2", ProductID: "p1", Quantity: 3, Status: model.ReservationReserved, ExpiresAt: now.Add(-time.Minute)},
		{ID: "r3", OrderID: "o3", ProductID: "p1", Quantity: 4, Status: model.ReservationReserved, ExpiresAt: now.Add(time.Hour)},
	}))

	held, err := s.ReservedQuantities(ctx, []string{"p1"}, "o3", now)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 2}, held)

	n, err := s.ReleaseExpiredReservations(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.ConsumeReservations(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	held, _ = s.ReservedQuantities(ctx, []string{"p1"}, "", now)
	assert.Equal(t, map[string]int{"p1": 4}, held)
}
