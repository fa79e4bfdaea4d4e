package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-stock-ledger/internal/apperr"
	"github.com/ariefcatur/go-stock-ledger/internal/catalog"
	"github.com/ariefcatur/go-stock-ledger/internal/ledger"
	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/ariefcatur/go-stock-ledger/internal/orders"
	"github.com/ariefcatur/go-stock-ledger/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// newTestStore starts a throwaway PostgreSQL and migrates it. Skipped with
// -short or when no container runtime is reachable.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger_test"),
		tcpostgres.WithUsername("app"),
		tcpostgres.WithPassword("secret"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	m, err := NewMigrator(dsn, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	pool, err := Connect(ctx, dsn, 16)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	st := NewStore(pool)
	require.NoError(t, st.PutUser(ctx, model.User{ID: "u1", Name: "Sari", Email: "sari@example.com"}))
	return st
}

func TestPostgresStore(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	l := ledger.New(st)
	cat := catalog.New(st, l, zap.NewNop())
	ord := orders.New(st, st, l, orders.WithReservations(10*time.Minute))

	register := func(code string, price string, stock int) *model.Product {
		p, err := cat.Register(ctx, catalog.RegisterInput{
			Name: "Product " + code, Code: code, Price: decimal.RequireFromString(price), InitialStock: stock,
		})
		require.NoError(t, err)
		return p
	}

	t.Run("duplicate code is a conflict", func(t *testing.T) {
		register("DUP", "1", 0)
		_, err := cat.Register(ctx, catalog.RegisterInput{Name: "x", Code: "DUP", Price: decimal.NewFromInt(1)})
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("conditional stock update", func(t *testing.T) {
		p := register("ADJ", "2.50", 3)
		err := st.InTx(ctx, func(q store.Querier) error {
			stock, ok, err := q.AdjustStock(ctx, p.ID, -5, time.Now())
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, 3, stock)
			return nil
		})
		require.NoError(t, err)

		_, _, err = st.AdjustStock(ctx, "missing", 1, time.Now())
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})

	t.Run("order lifecycle", func(t *testing.T) {
		a := register("A", "4.25", 10)
		b := register("B", "1.00", 2)

		o, _, err := ord.Create(ctx, orders.CreateInput{
			ExternalID: "ext-1", UserID: "u1", PayMethod: model.PayTransfer,
			Items: []orders.ItemInput{{ProductID: b.ID, Quantity: 2}, {ProductID: a.ID, Quantity: 3}},
		})
		require.NoError(t, err)
		assert.True(t, o.Total.Equal(decimal.RequireFromString("14.75")))

		got, err := ord.GetByID(ctx, o.ID)
		require.NoError(t, err)
		require.Len(t, got.Items, 2)
		assert.Equal(t, b.ID, got.Items[0].ProductID, "items keep their order")

		again, existed, err := ord.Create(ctx, orders.CreateInput{
			ExternalID: "ext-1", UserID: "u1", PayMethod: model.PayTransfer,
			Items: []orders.ItemInput{{ProductID: a.ID, Quantity: 1}},
		})
		require.NoError(t, err)
		assert.True(t, existed)
		assert.Equal(t, o.ID, again.ID)

		confirmed, err := ord.Confirm(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, confirmed.Status)

		for id, want := range map[string]int{a.ID: 7, b.ID: 0} {
			r, err := l.Reconcile(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, want, r.Stock)
			assert.True(t, r.Balanced)
		}

		err = cat.Remove(ctx, a.ID)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("concurrent outs never oversell", func(t *testing.T) {
		p := register("RACE", "1", 10)
		var wg sync.WaitGroup
		var mu sync.Mutex
		ok := 0
		for i := 0; i < 12; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := l.RecordMovement(ctx, ledger.MovementInput{ProductID: p.ID, Type: model.MovementOut, Quantity: 3})
				if err == nil {
					mu.Lock()
					ok++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 3, ok)
		got, err := cat.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Stock)
	})

	t.Run("reconcile is balanced while movements commit", func(t *testing.T) {
		p := register("AUDIT", "1", 5)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, err := l.RecordMovement(ctx, ledger.MovementInput{ProductID: p.ID, Type: model.MovementIn, Quantity: 2})
				assert.NoError(t, err)
			}()
			go func() {
				defer wg.Done()
				r, err := l.Reconcile(ctx, p.ID)
				if assert.NoError(t, err) {
					assert.True(t, r.Balanced, "stock %d, net %d", r.Stock, r.Net)
				}
			}()
		}
		wg.Wait()
	})

	t.Run("listing and reports", func(t *testing.T) {
		page, err := cat.List(ctx, catalog.ProductQuery{Name: "product a"})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, page.Total, 1)

		ms, err := l.List(ctx, ledger.MovementQuery{Type: "OUT"})
		require.NoError(t, err)
		assert.NotEmpty(t, ms.Data)

		month, err := ord.RevenueThisMonth(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, month)
	})
}
