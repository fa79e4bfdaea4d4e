package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// The database stays the source of truth; these keys are shortcuts and a
// miss only costs a query.

func RememberOrder(ctx context.Context, rdb redis.Cmdable, externalID, orderID string) error {
	return rdb.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, externalID), orderID, TTLIdempotency).Err()
}

// LookupOrder returns the order id stored for an external id, if any.
func LookupOrder(ctx context.Context, rdb redis.Cmdable, externalID string) (string, bool, error) {
	id, err := rdb.Get(ctx, fmt.Sprintf(KeyIdemOrderCreate, externalID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// CacheStatus stores the encoded order view under the order's status key.
func CacheStatus(ctx context.Context, rdb redis.Cmdable, orderID string, body []byte) error {
	return rdb.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), body, TTLStatusCache).Err()
}

func CachedStatus(ctx context.Context, rdb redis.Cmdable, orderID string) ([]byte, bool, error) {
	b, err := rdb.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func DropStatus(ctx context.Context, rdb redis.Cmdable, orderID string) error {
	return rdb.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}
