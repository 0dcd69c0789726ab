package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/washq/internal/domain"
	redisx "github.com/kirinyoku/washq/internal/redis"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache is a JSON read-through cache. Concurrent misses on the same key are
// collapsed into a single loader call.
type Cache struct {
	rdb *redis.Client
	sf  singleflight.Group
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{rdb: client}
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	return c.rdb.Del(ctx, keys...).Err()
}

func GetJSON[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var zero T

	s, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}

	var out T
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return zero, false, err
	}

	return out, true, nil
}

func SetJSON(ctx context.Context, c *Cache, key string, val any, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// GetOrSetJSON returns the cached value or loads, stores and returns it. A
// failing cache write does not fail the read.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	if v, ok, err := GetJSON[T](ctx, c, key); err == nil && ok {
		return v, nil
	}

	vAny, err, _ := c.sf.Do(key, func() (any, error) {
		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		_ = SetJSON(ctx, c, key, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	v, ok := vAny.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache: unexpected type %T for %s", vAny, key)
	}

	return v, nil
}

// InvalidateDay drops the cached availability of a calendar date.
func (c *Cache) InvalidateDay(ctx context.Context, date string) error {
	return c.Del(ctx, redisx.KeyDayAvailability(date))
}

// AvailabilityCache stores computed day availability by calendar date.
type AvailabilityCache struct {
	c   *Cache
	ttl time.Duration
}

func NewAvailabilityCache(c *Cache, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{c: c, ttl: ttl}
}

func (a *AvailabilityCache) GetDay(
	ctx context.Context,
	date string,
	load func(ctx context.Context) (domain.DayAvailability, error),
) (domain.DayAvailability, error) {
	return GetOrSetJSON(ctx, a.c, redisx.KeyDayAvailability(date), a.ttl, load)
}

func (a *AvailabilityCache) InvalidateDay(ctx context.Context, date string) error {
	return a.c.InvalidateDay(ctx, date)
}
