package redisrepo

import (
	"context"
	"errors"
	"strings"
	"time"

	redisx "github.com/kirinyoku/washq/internal/redis"
	"github.com/redis/go-redis/v9"
)

const (
	lockValue    = "LOCK"
	resultPrefix = "RES:"
)

// IdempotencyStore remembers the response of a hold request per
// (user, Idempotency-Key) so a retried POST returns the same booking.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

func HoldKey(userID, idemKey string) string {
	return redisx.KeyIdemHold(userID, idemKey)
}

// AcquireLock claims the key for the duration of one request.
func (s *IdempotencyStore) AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, lockValue, lockTTL).Result()
}

func (s *IdempotencyStore) SaveResult(ctx context.Context, key string, payload []byte) error {
	return s.rdb.Set(ctx, key, resultPrefix+string(payload), s.ttl).Err()
}

// GetResult returns a stored response. locked reports an in-flight request
// holding the key without a result yet.
func (s *IdempotencyStore) GetResult(ctx context.Context, key string) (payload []byte, found, locked bool, err error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, false, nil
	}
	if err != nil {
		return nil, false, false, err
	}

	if rest, ok := strings.CutPrefix(v, resultPrefix); ok {
		return []byte(rest), true, false, nil
	}

	return nil, false, v == lockValue, nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
