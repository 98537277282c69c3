package store

import "context"

// DeliveryStore claims webhook delivery ids so replays are processed once.
type DeliveryStore interface {
	// Claim returns true the first time a delivery id is seen within the retention window.
	Claim(ctx context.Context, platform, deliveryID string) (bool, error)
	// Release drops a claim so a provider retry of the same delivery is processed.
	Release(ctx context.Context, platform, deliveryID string) error
	Close() error
}

func deliveryKey(platform, deliveryID string) string {
	return "dispatch:delivery:" + platform + ":" + deliveryID
}
