package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisDeliveryStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeliveryStore(client *redis.Client, ttl time.Duration) DeliveryStore {
	return &redisDeliveryStore{client: client, ttl: ttl}
}

// NewRedisDeliveryStoreFromURL connects to Redis and verifies the connection.
func NewRedisDeliveryStoreFromURL(ctx context.Context, url string, ttl time.Duration) (DeliveryStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return NewRedisDeliveryStore(client, ttl), nil
}

func (s *redisDeliveryStore) Claim(ctx context.Context, platform, deliveryID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, deliveryKey(platform, deliveryID), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claiming delivery: %w", err)
	}
	return ok, nil
}

func (s *redisDeliveryStore) Release(ctx context.Context, platform, deliveryID string) error {
	if err := s.client.Del(ctx, deliveryKey(platform, deliveryID)).Err(); err != nil {
		return fmt.Errorf("releasing delivery: %w", err)
	}
	return nil
}

func (s *redisDeliveryStore) Close() error {
	return s.client.Close()
}
