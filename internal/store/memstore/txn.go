package memstore

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/ariefcatur/go-stock-ledger/internal/apperr"
	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/ariefcatur/go-stock-ledger/internal/store"
)

// txn is a Querier over one state. Locks are implicit: the owning unit of
// work already holds the store mutex.
type txn struct{ st *state }

var _ store.Querier = (*txn)(nil)

func cloneOrder(o model.Order) *model.Order {
	o.Items = slices.Clone(o.Items)
	return &o
}

func paginate[T any](all []T, p model.Page) []T {
	if p.Limit <= 0 {
		return all
	}
	off := p.Offset()
	if off < 0 || off >= len(all) {
		return []T{}
	}
	end := off + p.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[off:end]
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

// ---- products ----

func (q *txn) InsertProduct(_ context.Context, p *model.Product) error {
	if _, taken := q.st.codes[p.Code]; taken {
		return apperr.Conflict("product code %q already exists", p.Code)
	}
	q.st.products[p.ID] = *p
	q.st.codes[p.Code] = p.ID
	return nil
}

func (q *txn) GetProduct(_ context.Context, id string) (*model.Product, error) {
	p, ok := q.st.products[id]
	if !ok {
		return nil, apperr.NotFound("product %s not found", id)
	}
	return &p, nil
}

func (q *txn) GetProducts(_ context.Context, ids []string) (map[string]model.Product, error) {
	out := make(map[string]model.Product, len(ids))
	for _, id := range ids {
		if p, ok := q.st.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (q *txn) LockProducts(context.Context, []string) error { return nil }

func (q *txn) ListProducts(_ context.Context, f store.ProductFilter) ([]model.Product, int, error) {
	name := strings.ToLower(f.Name)
	var all []model.Product
	for _, p := range q.st.products {
		if name != "" && !strings.Contains(strings.ToLower(p.Name), name) {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].ID < all[j].ID
	})
	return paginate(all, f.Page), len(all), nil
}

func (q *txn) LowStock(_ context.Context, threshold int) ([]model.Product, error) {
	out := []model.Product{}
	for _, p := range q.st.products {
		if p.Stock < threshold {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stock != out[j].Stock {
			return out[i].Stock < out[j].Stock
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (q *txn) StockedProducts(_ context.Context) ([]model.Product, error) {
	out := []model.Product{}
	for _, p := range q.st.products {
		if p.Stock > 0 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q *txn) UpdateProduct(_ context.Context, id string, patch model.ProductPatch, at time.Time) (*model.Product, error) {
	p, ok := q.st.products[id]
	if !ok {
		return nil, apperr.NotFound("product %s not found", id)
	}
	if patch.Code != nil && *patch.Code != p.Code {
		if _, taken := q.st.codes[*patch.Code]; taken {
			return nil, apperr.Conflict("product code %q already exists", *patch.Code)
		}
		delete(q.st.codes, p.Code)
		q.st.codes[*patch.Code] = id
		p.Code = *patch.Code
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Cost != nil {
		p.Cost.Decimal, p.Cost.Valid = *patch.Cost, true
	}
	p.UpdatedAt = at
	q.st.products[id] = p
	return &p, nil
}

func (q *txn) DeleteProduct(_ context.Context, id string) error {
	p, ok := q.st.products[id]
	if !ok {
		return apperr.NotFound("product %s not found", id)
	}
	delete(q.st.products, id)
	delete(q.st.codes, p.Code)
	return nil
}

func (q *txn) ProductReferenced(_ context.Context, id string) (bool, error) {
	for _, m := range q.st.movements {
		if m.ProductID == id {
			return true, nil
		}
	}
	for _, o := range q.st.orders {
		for _, it := range o.Items {
			if it.ProductID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

func (q *txn) AdjustStock(_ context.Context, id string, delta int, at time.Time) (int, bool, error) {
	p, ok := q.st.products[id]
	if !ok {
		return 0, false, apperr.NotFound("product %s not found", id)
	}
	if p.Stock+delta < 0 {
		return p.Stock, false, nil
	}
	p.Stock += delta
	p.UpdatedAt = at
	q.st.products[id] = p
	return p.Stock, true, nil
}

// ---- movements ----

func (q *txn) InsertMovement(_ context.Context, m *model.Movement) error {
	q.st.movements = append(q.st.movements, *m)
	return nil
}

func (q *txn) ListMovements(_ context.Context, f store.MovementFilter) ([]model.Movement, int, error) {
	var all []model.Movement
	for i := len(q.st.movements) - 1; i >= 0; i-- {
		m := q.st.movements[i]
		if f.Type != "" && m.Type != f.Type {
			continue
		}
		if f.ProductID != "" && m.ProductID != f.ProductID {
			continue
		}
		if !inRange(m.CreatedAt, f.From, f.To) {
			continue
		}
		all = append(all, m)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, f.Page), len(all), nil
}

func (q *txn) MovementTotals(_ context.Context, productID string) (int, int, error) {
	var in, out int
	for _, m := range q.st.movements {
		if m.ProductID != productID || m.Source == model.SourceRecordOnly {
			continue
		}
		if m.Type == model.MovementIn {
			in += m.Quantity
		} else {
			out += m.Quantity
		}
	}
	return in, out, nil
}

// ---- orders ----

func (q *txn) InsertOrder(_ context.Context, o *model.Order) error {
	if o.ExternalID != "" {
		if _, taken := q.st.externalIDs[o.ExternalID]; taken {
			return apperr.Conflict("order with external id %q already exists", o.ExternalID)
		}
		q.st.externalIDs[o.ExternalID] = o.ID
	}
	q.st.orders[o.ID] = *cloneOrder(*o)
	return nil
}

func (q *txn) GetOrder(_ context.Context, id string) (*model.Order, error) {
	o, ok := q.st.orders[id]
	if !ok {
		return nil, apperr.NotFound("order %s not found", id)
	}
	return cloneOrder(o), nil
}

func (q *txn) GetOrderForUpdate(ctx context.Context, id string) (*model.Order, error) {
	return q.GetOrder(ctx, id)
}

func (q *txn) GetOrderByExternalID(ctx context.Context, externalID string) (*model.Order, error) {
	id, ok := q.st.externalIDs[externalID]
	if !ok {
		return nil, apperr.NotFound("order with external id %q not found", externalID)
	}
	return q.GetOrder(ctx, id)
}

func (q *txn) ListOrders(_ context.Context, f store.OrderFilter) ([]model.Order, int, error) {
	var all []model.Order
	for _, o := range q.st.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.PayMethod != "" && o.PayMethod != f.PayMethod {
			continue
		}
		if !inRange(o.CreatedAt, f.From, f.To) {
			continue
		}
		all = append(all, *cloneOrder(o))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	return paginate(all, f.Page), len(all), nil
}

func (q *txn) UpdateOrderStatus(_ context.Context, id string, from, to model.Status, at time.Time) (bool, error) {
	o, ok := q.st.orders[id]
	if !ok {
		return false, apperr.NotFound("order %s not found", id)
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = at
	if to == model.StatusConfirmed {
		t := at
		o.ConfirmedAt = &t
	}
	q.st.orders[id] = o
	return true, nil
}

func (q *txn) ConfirmedOrders(_ context.Context, from, to time.Time) ([]model.Order, error) {
	var out []model.Order
	for _, o := range q.st.orders {
		if o.Status != model.StatusConfirmed || o.CreatedAt.Before(from) || !o.CreatedAt.Before(to) {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ---- reservations ----

func (q *txn) InsertReservations(_ context.Context, rs []model.Reservation) error {
	q.st.reservations = append(q.st.reservations, rs...)
	return nil
}

func (q *txn) ReservedQuantities(_ context.Context, productIDs []string, excludeOrderID string, now time.Time) (map[string]int, error) {
	out := map[string]int{}
	for _, r := range q.st.reservations {
		if r.Status != model.ReservationReserved || !r.ExpiresAt.After(now) || r.OrderID == excludeOrderID {
			continue
		}
		if slices.Contains(productIDs, r.ProductID) {
			out[r.ProductID] += r.Quantity
		}
	}
	return out, nil
}

func (q *txn) ConsumeReservations(_ context.Context, orderID string) (int, error) {
	n := 0
	for i, r := range q.st.reservations {
		if r.OrderID == orderID && r.Status == model.ReservationReserved {
			q.st.reservations[i].Status = model.ReservationConsumed
			n++
		}
	}
	return n, nil
}

func (q *txn) ReleaseExpiredReservations(_ context.Context, now time.Time) (int, error) {
	n := 0
	for i, r := range q.st.reservations {
		if r.Status == model.ReservationReserved && !r.ExpiresAt.After(now) {
			q.st.reservations[i].Status = model.ReservationReleased
			n++
		}
	}
	return n, nil
}

// ---- users ----

func (q *txn) FindUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := q.st.users[id]
	if !ok {
		return nil, apperr.NotFound("user %s not found", id)
	}
	return &u, nil
}
