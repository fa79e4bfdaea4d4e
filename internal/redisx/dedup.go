package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// MarkOnce claims an event id for a service. It returns false when the id
// was already claimed, i.e. the event is a redelivery.
func MarkOnce(ctx context.Context, rdb redis.Cmdable, service, eventID string) (bool, error) {
	return rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup).Result()
}

// Unmark releases a claim so a failed event can be processed again.
func Unmark(ctx context.Context, rdb redis.Cmdable, service, eventID string) error {
	return rdb.Del(ctx, fmt.Sprintf(KeyDedup, service, eventID)).Err()
}
