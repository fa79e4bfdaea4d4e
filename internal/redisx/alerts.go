package redisx

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type LowStockEntry struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
}

// FlagLowStock puts a product on the board, or updates its stock.
func FlagLowStock(ctx context.Context, rdb redis.Cmdable, productID string, stock int) error {
	return rdb.ZAdd(ctx, KeyLowStock, redis.Z{Score: float64(stock), Member: productID}).Err()
}

func ClearLowStock(ctx context.Context, rdb redis.Cmdable, productID string) error {
	return rdb.ZRem(ctx, KeyLowStock, productID).Err()
}

// LowStockBoard lists flagged products, lowest stock first.
func LowStockBoard(ctx context.Context, rdb redis.Cmdable, limit int) ([]LowStockEntry, error) {
	zs, err := rdb.ZRangeWithScores(ctx, KeyLowStock, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]LowStockEntry, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		out = append(out, LowStockEntry{ProductID: id, Stock: int(z.Score)})
	}
	return out, nil
}
