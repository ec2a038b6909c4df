package locking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// RedisLocker backs scope locks with Redis so several planner processes
// can share one database
type RedisLocker struct {
	rdb    *redis.Client
	client *redislock.Client
}

// NewRedisLocker connects to addr and verifies the connection
func NewRedisLocker(ctx context.Context, addr string) (*RedisLocker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "",
		DB:       0,
		PoolSize: 10,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect redis at %s: %w", addr, err)
	}
	return &RedisLocker{rdb: rdb, client: redislock.New(rdb)}, nil
}

// Obtain takes key without retrying; a held key yields ErrNotObtained
func (r *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lock, err := r.client.Obtain(ctx, "lock:"+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("error obtaining lock %s: %w", key, err)
	}
	return &redisLock{lock: lock}, nil
}

// Close closes the Redis connection
func (r *RedisLocker) Close() error {
	return r.rdb.Close()
}

type redisLock struct {
	lock *redislock.Lock
}

func (h *redisLock) Release(ctx context.Context) error {
	err := h.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}
