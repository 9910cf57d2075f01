package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore keeps a short lock while a request is in flight and the
// resulting id once it succeeds.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = TTLIdempotency
	}
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

func (s *IdempotencyStore) TryLock(ctx context.Context, scope, key string) (bool, error) {
	return s.rdb.SetNX(ctx, fmt.Sprintf(KeyIdemLock, scope, key), "1", s.ttl).Result()
}

func (s *IdempotencyStore) Remember(ctx context.Context, scope, key, value string) error {
	return s.rdb.Set(ctx, fmt.Sprintf(KeyIdemResult, scope, key), value, s.ttl).Err()
}

func (s *IdempotencyStore) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, fmt.Sprintf(KeyIdemResult, scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Release drops the lock so a failed request can be retried with the same key.
func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	return s.rdb.Del(ctx, fmt.Sprintf(KeyIdemLock, scope, key)).Err()
}
