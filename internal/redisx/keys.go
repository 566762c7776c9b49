package redisx

import "time"

const (
	// Cache status order: order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup webhook processing: dedup:{scope}:{id} (id = transaction_id:STATUS)
	KeyDedup = "dedup:%s:%s"

	// Single-runner lock: lock:{job}
	KeyLock = "lock:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
