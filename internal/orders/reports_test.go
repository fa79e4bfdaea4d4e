package orders

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-stock-ledger/internal/apperr"
	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevenueCountsConfirmedOrdersOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "P", "2.50", 100)

	f.now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	early := f.place(t, ItemInput{ProductID: p.ID, Quantity: 4})
	_, err := f.orders.Confirm(ctx, early.ID)
	require.NoError(t, err)

	f.now = time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	today := f.place(t, ItemInput{ProductID: p.ID, Quantity: 2})
	f.place(t, ItemInput{ProductID: p.ID, Quantity: 10}) // stays PENDING
	_, err = f.orders.Confirm(ctx, today.ID)
	require.NoError(t, err)

	day, err := f.orders.RevenueToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14", day.Date)
	assert.Equal(t, 1, day.Count)
	assert.True(t, day.Total.Equal(decimal.NewFromInt(5)))

	month, err := f.orders.RevenueThisMonth(ctx)
	require.NoError(t, err)
	require.Len(t, month, 31)
	assert.Equal(t, "2026-03-01", month[0].Date)
	assert.True(t, month[0].Total.IsZero())
	assert.True(t, month[1].Total.Equal(decimal.NewFromInt(10)))
	assert.True(t, month[13].Total.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, "2026-03-31", month[30].Date)
}

func TestDailyRevenueSkipsOutOfRange(t *testing.T) {
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	days := dailyRevenue([]model.Order{
		{Total: decimal.NewFromInt(3), CreatedAt: time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC)},
		{Total: decimal.NewFromInt(7), CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}, from, from.AddDate(0, 1, 0))
	require.Len(t, days, 28)
	assert.True(t, days[27].Total.Equal(decimal.NewFromInt(3)))
}

func TestTopProductsOrdering(t *testing.T) {
	item := func(id string, qty int) model.OrderItem {
		return model.OrderItem{ProductID: id, ProductName: "name-" + id, Quantity: qty}
	}
	top := topProducts([]model.Order{
		{Items: []model.OrderItem{item("c", 3), item("a", 1)}},
		{Items: []model.OrderItem{item("b", 3), item("a", 4)}},
		{Items: []model.OrderItem{item("d", 1)}},
	}, 3)
	assert.Equal(t, []ProductSales{
		{ProductID: "a", ProductName: "name-a", Quantity: 5},
		{ProductID: "b", ProductName: "name-b", Quantity: 3},
		{ProductID: "c", ProductName: "name-c", Quantity: 3},
	}, top)
}

func TestTopProductsThisMonth(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.product(t, "A", "1", 50)
	b := f.product(t, "B", "1", 50)

	o := f.place(t, ItemInput{ProductID: a.ID, Quantity: 2}, ItemInput{ProductID: b.ID, Quantity: 7})
	_, err := f.orders.Confirm(ctx, o.ID)
	require.NoError(t, err)
	f.place(t, ItemInput{ProductID: a.ID, Quantity: 30})

	top, err := f.orders.TopProductsThisMonth(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, b.ID, top[0].ProductID)
	assert.Equal(t, 7, top[0].Quantity)

	_, err = f.orders.TopProductsThisMonth(ctx, MaxTopProducts+1)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
