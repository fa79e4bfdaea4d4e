package postgres

import (
	"context"
	"time"

	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/jackc/pgx/v5"
)

func (q *queries) InsertReservations(ctx context.Context, rs []model.Reservation) error {
	if len(rs) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, r := range rs {
		b.Queue(`
			INSERT INTO reservations (id, order_id, product_id, quantity, status, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.ID, r.OrderID, r.ProductID, r.Quantity, r.Status, r.ExpiresAt, r.CreatedAt)
	}
	return mapErr("insert reservations", q.db.SendBatch(ctx, b).Close(), nil)
}

func (q *queries) ReservedQuantities(ctx context.Context, productIDs []string, excludeOrderID string, now time.Time) (map[string]int, error) {
	rows, err := q.db.Query(ctx, `
		SELECT product_id, SUM(quantity)
		FROM reservations
		WHERE status = 'RESERVED' AND expires_at > $3
		  AND product_id = ANY($1) AND order_id <> $2
		GROUP BY product_id`, productIDs, excludeOrderID, now)
	if err != nil {
		return nil, mapErr("sum reservations", err, nil)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, mapErr("scan reservation sum", err, nil)
		}
		out[id] = n
	}
	return out, mapErr("read reservation sums", rows.Err(), nil)
}

func (q *queries) ConsumeReservations(ctx context.Context, orderID string) (int, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE reservations SET status = 'CONSUMED'
		WHERE order_id = $1 AND status = 'RESERVED'`, orderID)
	if err != nil {
		return 0, mapErr("consume reservations", err, nil)
	}
	return int(tag.RowsAffected()), nil
}

func (q *queries) ReleaseExpiredReservations(ctx context.Context, now time.Time) (int, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE reservations SET status = 'RELEASED'
		WHERE status = 'RESERVED' AND expires_at <= $1`, now)
	if err != nil {
		return 0, mapErr("release reservations", err, nil)
	}
	return int(tag.RowsAffected()), nil
}
