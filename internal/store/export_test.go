package store

import (
	"time"
)

// NewMemoryDeliveryStoreWithClock exposes the clock seam to tests.
func NewMemoryDeliveryStoreWithClock(ttl time.Duration, now func() time.Time) DeliveryStore {
	return newMemoryDeliveryStore(ttl, now)
}
