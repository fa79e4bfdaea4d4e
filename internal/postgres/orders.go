package postgres

import (
	"context"
	"time"

	"github.com/ariefcatur/go-stock-ledger/internal/apperr"
	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/ariefcatur/go-stock-ledger/internal/store"
	"github.com/jackc/pgx/v5"
)

const orderCols = `id, COALESCE(external_id, ''), user_id, pay_method, status, total, created_at, updated_at, confirmed_at`

func scanOrder(row pgx.Row) (model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.ExternalID, &o.UserID, &o.PayMethod, &o.Status, &o.Total, &o.CreatedAt, &o.UpdatedAt, &o.ConfirmedAt)
	return o, err
}

func (q *queries) InsertOrder(ctx context.Context, o *model.Order) error {
	b := &pgx.Batch{}
	b.Queue(`
		INSERT INTO orders (id, external_id, user_id, pay_method, status, total, created_at, updated_at, confirmed_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.ExternalID, o.UserID, o.PayMethod, o.Status, o.Total, o.CreatedAt, o.UpdatedAt, o.ConfirmedAt)
	for i, it := range o.Items {
		b.Queue(`
			INSERT INTO order_items (id, order_id, line, product_id, product_name, quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			it.ID, o.ID, i+1, it.ProductID, it.ProductName, it.Quantity, it.Price)
	}
	br := q.db.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return mapErr("insert order", err, nil)
		}
	}
	return mapErr("insert order", br.Close(), nil)
}

func orderNotFound(id string) func() error {
	return func() error { return apperr.NotFound("order %s not found", id) }
}

func (q *queries) getOrder(ctx context.Context, sql string, arg any, notFound func() error) (*model.Order, error) {
	o, err := scanOrder(q.db.QueryRow(ctx, sql, arg))
	if err != nil {
		return nil, mapErr("get order", err, notFound)
	}
	list := []model.Order{o}
	if err := q.attachItems(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (q *queries) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return q.getOrder(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id, orderNotFound(id))
}

func (q *queries) GetOrderForUpdate(ctx context.Context, id string) (*model.Order, error) {
	return q.getOrder(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1 FOR UPDATE`, id, orderNotFound(id))
}

func (q *queries) GetOrderByExternalID(ctx context.Context, externalID string) (*model.Order, error) {
	return q.getOrder(ctx, `SELECT `+orderCols+` FROM orders WHERE external_id = $1`, externalID, func() error {
		return apperr.NotFound("order with external id %q not found", externalID)
	})
}

func (q *queries) collectOrders(ctx context.Context, rows pgx.Rows, err error) ([]model.Order, error) {
	if err != nil {
		return nil, mapErr("query orders", err, nil)
	}
	out := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, mapErr("scan order", err, nil)
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapErr("read orders", err, nil)
	}
	if err := q.attachItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachItems loads the items of every order in one query.
func (q *queries) attachItems(ctx context.Context, list []model.Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	pos := make(map[string]int, len(list))
	for i, o := range list {
		ids[i] = o.ID
		pos[o.ID] = i
		list[i].Items = []model.OrderItem{}
	}
	rows, err := q.db.Query(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, price
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY order_id, line`, ids)
	if err != nil {
		return mapErr("load order items", err, nil)
	}
	defer rows.Close()
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price); err != nil {
			return mapErr("scan order item", err, nil)
		}
		i := pos[it.OrderID]
		list[i].Items = append(list[i].Items, it)
	}
	return mapErr("read order items", rows.Err(), nil)
}

func (q *queries) ListOrders(ctx context.Context, f store.OrderFilter) ([]model.Order, int, error) {
	var w where
	if f.Status != "" {
		w.add(`status = ?`, f.Status)
	}
	if f.UserID != "" {
		w.add(`user_id = ?`, f.UserID)
	}
	if f.PayMethod != "" {
		w.add(`pay_method = ?`, f.PayMethod)
	}
	if f.From != nil {
		w.add(`created_at >= ?`, *f.From)
	}
	if f.To != nil {
		w.add(`created_at <= ?`, *f.To)
	}
	var total int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, mapErr("count orders", err, nil)
	}
	limit, args := w.page(f.Page)
	rows, err := q.db.Query(ctx, `SELECT `+orderCols+` FROM orders`+w.String()+` ORDER BY created_at DESC, id`+limit, args...)
	list, err := q.collectOrders(ctx, rows, err)
	return list, total, err
}

func (q *queries) UpdateOrderStatus(ctx context.Context, id string, from, to model.Status, at time.Time) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE orders SET
			status = $3,
			updated_at = $4,
			confirmed_at = CASE WHEN $3::text = 'CONFIRMED' THEN $4::timestamptz ELSE confirmed_at END
		WHERE id = $1 AND status = $2`, id, from, to, at)
	if err != nil {
		return false, mapErr("update order status", err, nil)
	}
	return tag.RowsAffected() == 1, nil
}

func (q *queries) ConfirmedOrders(ctx context.Context, from, to time.Time) ([]model.Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderCols+` FROM orders
		WHERE status = 'CONFIRMED' AND created_at >= $1 AND created_at < $2
		ORDER BY created_at, id`, from, to)
	return q.collectOrders(ctx, rows, err)
}
