package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store backs the checkout idempotency middleware and the webhook's
// fast-path event dedup. Redis here is an optimization layer only: the
// settlement reconciler's status preconditions remain the correctness guard
// when Redis is cold or has expired an entry.
type Store struct {
	client *redis.Client
}

func NewStore(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &Store{client: redis.NewClient(opts)}, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// SeenEvent records a webhook event id and reports whether it was already
// processed. SETNX makes the check-and-record a single round trip.
func (s *Store) SeenEvent(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, "webhook:event:"+eventID, "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
