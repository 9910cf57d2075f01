package redisx

import "time"

const (
	// Placement idempotency lock: idem:lock:{user_id}:{scope:key}
	KeyIdemLock = "idem:lock:%s:%s"
	// Placement idempotency result: idem:map:{user_id}:{scope:key} -> order_id
	KeyIdemResult = "idem:map:%s:%s"

	// Cached order detail: order:{order_id} -> JSON
	KeyOrder = "order:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderCache  = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
