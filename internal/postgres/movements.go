package postgres

import (
	"context"

	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/ariefcatur/go-stock-ledger/internal/store"
)

const movementCols = `id, product_id, type, quantity, unit_cost, source, reference, created_at`

func (q *queries) InsertMovement(ctx context.Context, m *model.Movement) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO inventory_movements (`+movementCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.ProductID, m.Type, m.Quantity, m.UnitCost, m.Source, m.Reference, m.CreatedAt)
	return mapErr("insert movement", err, nil)
}

func (q *queries) ListMovements(ctx context.Context, f store.MovementFilter) ([]model.Movement, int, error) {
	var w where
	if f.Type != "" {
		w.add(`type = ?`, f.Type)
	}
	if f.ProductID != "" {
		w.add(`product_id = ?`, f.ProductID)
	}
	if f.From != nil {
		w.add(`created_at >= ?`, *f.From)
	}
	if f.To != nil {
		w.add(`created_at <= ?`, *f.To)
	}
	var total int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_movements`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, mapErr("count movements", err, nil)
	}
	limit, args := w.page(f.Page)
	rows, err := q.db.Query(ctx, `SELECT `+movementCols+` FROM inventory_movements`+w.String()+
		` ORDER BY created_at DESC, id DESC`+limit, args...)
	if err != nil {
		return nil, 0, mapErr("list movements", err, nil)
	}
	defer rows.Close()
	out := []model.Movement{}
	for rows.Next() {
		var m model.Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.Quantity, &m.UnitCost, &m.Source, &m.Reference, &m.CreatedAt); err != nil {
			return nil, 0, mapErr("scan movement", err, nil)
		}
		out = append(out, m)
	}
	return out, total, mapErr("read movements", rows.Err(), nil)
}

func (q *queries) MovementTotals(ctx context.Context, productID string) (int, int, error) {
	var in, out int
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity) FILTER (WHERE type = 'IN'), 0),
		       COALESCE(SUM(quantity) FILTER (WHERE type = 'OUT'), 0)
		FROM inventory_movements
		WHERE product_id = $1 AND source <> $2`, productID, model.SourceRecordOnly).Scan(&in, &out)
	return in, out, mapErr("sum movements", err, nil)
}
