package memstore

import (
	"context"
	"time"

	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/ariefcatur/go-stock-ledger/internal/store"
)

// Calls made on the Store outside InTx behave as single-statement units of
// work: reads see the committed state, writes commit on their own.

func (s *Store) InsertProduct(ctx context.Context, p *model.Product) error {
	_, err := update(ctx, s, func(q *txn) (struct{}, error) { return struct{}{}, q.InsertProduct(ctx, p) })
	return err
}

func (s *Store) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return view(s, func(q *txn) (*model.Product, error) { return q.GetProduct(ctx, id) })
}

func (s *Store) GetProducts(ctx context.Context, ids []string) (map[string]model.Product, error) {
	return view(s, func(q *txn) (map[string]model.Product, error) { return q.GetProducts(ctx, ids) })
}

func (s *Store) LockProducts(context.Context, []string) error { return nil }

func (s *Store) ListProducts(ctx context.Context, f store.ProductFilter) ([]model.Product, int, error) {
	l, err := view(s, func(q *txn) (listed[model.Product], error) {
		items, total, err := q.ListProducts(ctx, f)
		return listed[model.Product]{items, total}, err
	})
	return l.items, l.total, err
}

func (s *Store) LowStock(ctx context.Context, threshold int) ([]model.Product, error) {
	return view(s, func(q *txn) ([]model.Product, error) { return q.LowStock(ctx, threshold) })
}

func (s *Store) StockedProducts(ctx context.Context) ([]model.Product, error) {
	return view(s, func(q *txn) ([]model.Product, error) { return q.StockedProducts(ctx) })
}

func (s *Store) UpdateProduct(ctx context.Context, id string, patch model.ProductPatch, at time.Time) (*model.Product, error) {
	return update(ctx, s, func(q *txn) (*model.Product, error) { return q.UpdateProduct(ctx, id, patch, at) })
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	_, err := update(ctx, s, func(q *txn) (struct{}, error) { return struct{}{}, q.DeleteProduct(ctx, id) })
	return err
}

func (s *Store) ProductReferenced(ctx context.Context, id string) (bool, error) {
	return view(s, func(q *txn) (bool, error) { return q.ProductReferenced(ctx, id) })
}

func (s *Store) AdjustStock(ctx context.Context, id string, delta int, at time.Time) (int, bool, error) {
	type res struct {
		stock int
		ok    bool
	}
	r, err := update(ctx, s, func(q *txn) (res, error) {
		stock, ok, err := q.AdjustStock(ctx, id, delta, at)
		return res{stock, ok}, err
	})
	return r.stock, r.ok, err
}

func (s *Store) InsertMovement(ctx context.Context, m *model.Movement) error {
	_, err := update(ctx, s, func(q *txn) (struct{}, error) { return struct{}{}, q.InsertMovement(ctx, m) })
	return err
}

func (s *Store) ListMovements(ctx context.Context, f store.MovementFilter) ([]model.Movement, int, error) {
	l, err := view(s, func(q *txn) (listed[model.Movement], error) {
		items, total, err := q.ListMovements(ctx, f)
		return listed[model.Movement]{items, total}, err
	})
	return l.items, l.total, err
}

func (s *Store) MovementTotals(ctx context.Context, productID string) (int, int, error) {
	type res struct{ in, out int }
	r, err := view(s, func(q *txn) (res, error) {
		in, out, err := q.MovementTotals(ctx, productID)
		return res{in, out}, err
	})
	return r.in, r.out, err
}

func (s *Store) InsertOrder(ctx context.Context, o *model.Order) error {
	_, err := update(ctx, s, func(q *txn) (struct{}, error) { return struct{}{}, q.InsertOrder(ctx, o) })
	return err
}

func (s *Store) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return view(s, func(q *txn) (*model.Order, error) { return q.GetOrder(ctx, id) })
}

func (s *Store) GetOrderForUpdate(ctx context.Context, id string) (*model.Order, error) {
	return s.GetOrder(ctx, id)
}

func (s *Store) GetOrderByExternalID(ctx context.Context, externalID string) (*model.Order, error) {
	return view(s, func(q *txn) (*model.Order, error) { return q.GetOrderByExternalID(ctx, externalID) })
}

func (s *Store) ListOrders(ctx context.Context, f store.OrderFilter) ([]model.Order, int, error) {
	l, err := view(s, func(q *txn) (listed[model.Order], error) {
		items, total, err := q.ListOrders(ctx, f)
		return listed[model.Order]{items, total}, err
	})
	return l.items, l.total, err
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, from, to model.Status, at time.Time) (bool, error) {
	return update(ctx, s, func(q *txn) (bool, error) { return q.UpdateOrderStatus(ctx, id, from, to, at) })
}

func (s *Store) ConfirmedOrders(ctx context.Context, from, to time.Time) ([]model.Order, error) {
	return view(s, func(q *txn) ([]model.Order, error) { return q.ConfirmedOrders(ctx, from, to) })
}

func (s *Store) InsertReservations(ctx context.Context, rs []model.Reservation) error {
	_, err := update(ctx, s, func(q *txn) (struct{}, error) { return struct{}{}, q.InsertReservations(ctx, rs) })
	return err
}

func (s *Store) ReservedQuantities(ctx context.Context, productIDs []string, excludeOrderID string, now time.Time) (map[string]int, error) {
	return view(s, func(q *txn) (map[string]int, error) {
		return q.ReservedQuantities(ctx, productIDs, excludeOrderID, now)
	})
}

func (s *Store) ConsumeReservations(ctx context.Context, orderID string) (int, error) {
	return update(ctx, s, func(q *txn) (int, error) { return q.ConsumeReservations(ctx, orderID) })
}

func (s *Store) ReleaseExpiredReservations(ctx context.Context, now time.Time) (int, error) {
	return update(ctx, s, func(q *txn) (int, error) { return q.ReleaseExpiredReservations(ctx, now) })
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	return view(s, func(q *txn) (*model.User, error) { return q.FindUserByID(ctx, id) })
}
