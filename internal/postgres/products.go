package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-stock-ledger/internal/apperr"
	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/ariefcatur/go-stock-ledger/internal/store"
	"github.com/jackc/pgx/v5"
)

const productCols = `id, name, code, price, cost, stock, created_at, updated_at`

func scanProduct(row pgx.Row) (model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Code, &p.Price, &p.Cost, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func collectProducts(rows pgx.Rows, err error) ([]model.Product, error) {
	if err != nil {
		return nil, mapErr("query products", err, nil)
	}
	defer rows.Close()
	out := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, mapErr("scan product", err, nil)
		}
		out = append(out, p)
	}
	return out, mapErr("read products", rows.Err(), nil)
}

func productNotFound(id string) func() error {
	return func() error { return apperr.NotFound("product %s not found", id) }
}

func (q *queries) InsertProduct(ctx context.Context, p *model.Product) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO products (`+productCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Name, p.Code, p.Price, p.Cost, p.Stock, p.CreatedAt, p.UpdatedAt)
	return mapErr("insert product", err, nil)
}

func (q *queries) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	p, err := scanProduct(q.db.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("get product", err, productNotFound(id))
	}
	return &p, nil
}

func (q *queries) GetProducts(ctx context.Context, ids []string) (map[string]model.Product, error) {
	ps, err := collectProducts(q.db.Query(ctx, `SELECT `+productCols+` FROM products WHERE id = ANY($1)`, ids))
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Product, len(ps))
	for _, p := range ps {
		out[p.ID] = p
	}
	return out, nil
}

func (q *queries) LockProducts(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := q.db.Exec(ctx, `SELECT 1 FROM products WHERE id = $1 FOR UPDATE`, id); err != nil {
			return mapErr("lock product", err, nil)
		}
	}
	return nil
}

func (q *queries) ListProducts(ctx context.Context, f store.ProductFilter) ([]model.Product, int, error) {
	var w where
	if f.Name != "" {
		w.add(`name ILIKE '%' || ? || '%'`, f.Name)
	}
	if f.MinPrice != nil {
		w.add(`price >= ?`, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		w.add(`price <= ?`, *f.MaxPrice)
	}
	var total int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, mapErr("count products", err, nil)
	}
	limit, args := w.page(f.Page)
	ps, err := collectProducts(q.db.Query(ctx, `SELECT `+productCols+` FROM products`+w.String()+` ORDER BY name, id`+limit, args...))
	return ps, total, err
}

func (q *queries) LowStock(ctx context.Context, threshold int) ([]model.Product, error) {
	return collectProducts(q.db.Query(ctx, `SELECT `+productCols+` FROM products WHERE stock < $1 ORDER BY stock, id`, threshold))
}

func (q *queries) StockedProducts(ctx context.Context) ([]model.Product, error) {
	return collectProducts(q.db.Query(ctx, `SELECT `+productCols+` FROM products WHERE stock > 0 ORDER BY id`))
}

func (q *queries) UpdateProduct(ctx context.Context, id string, patch model.ProductPatch, at time.Time) (*model.Product, error) {
	p, err := scanProduct(q.db.QueryRow(ctx, `
		UPDATE products SET
			name = COALESCE($2, name),
			code = COALESCE($3, code),
			price = COALESCE($4, price),
			cost = COALESCE($5, cost),
			updated_at = $6
		WHERE id = $1
		RETURNING `+productCols,
		id, patch.Name, patch.Code, patch.Price, patch.Cost, at))
	if err != nil {
		return nil, mapErr("update product", err, productNotFound(id))
	}
	return &p, nil
}

func (q *queries) DeleteProduct(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return mapErr("delete product", err, nil)
	}
	if tag.RowsAffected() == 0 {
		return productNotFound(id)()
	}
	return nil
}

func (q *queries) ProductReferenced(ctx context.Context, id string) (bool, error) {
	var used bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM inventory_movements WHERE product_id = $1)
		    OR EXISTS (SELECT 1 FROM order_items WHERE product_id = $1)`, id).Scan(&used)
	return used, mapErr("check product references", err, nil)
}

// AdjustStock is a single conditional UPDATE: the row is only written when
// the new stock stays non-negative.
func (q *queries) AdjustStock(ctx context.Context, id string, delta int, at time.Time) (int, bool, error) {
	var stock int
	err := q.db.QueryRow(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = $3
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING stock`, id, delta, at).Scan(&stock)
	if err == nil {
		return stock, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, mapErr("adjust stock", err, nil)
	}
	err = q.db.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock)
	if err != nil {
		return 0, false, mapErr("read stock", err, productNotFound(id))
	}
	return stock, false, nil
}
