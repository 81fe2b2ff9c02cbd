package redisx

import "time"

const (
	// Snapshot of a settled order for the success page: order_view:{order_id} -> JSON
	KeyOrderView = "order_view:%s"

	// Dedup event processing: dedup:{scope}:{id} (id = charge_id:status or order_id)
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLOrderView = 10 * time.Minute
	TTLDedup     = 48 * time.Hour
)
