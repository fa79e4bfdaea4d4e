package redisx

import "time"

const (
	// Idempotency create order: idem:order:create:{external_id} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Order view cache: order_status:{order_id} -> order JSON, refreshed on confirm
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Low-stock board: sorted set of product_id scored by stock.
	KeyLowStock = "alerts:low_stock"

	// Singleton job lease: lease:{job}
	KeyLease = "lease:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
