package locker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// RedisLocker implements DistributedLocker on Redsync (the Redlock
// algorithm). Acquisition is non-blocking: contention returns false,
// not an error.
type RedisLocker struct {
	rs      *redsync.Redsync
	logger  *slog.Logger
	mutexes map[string]*redsync.Mutex
	mu      sync.Mutex
}

// NewRedisLocker creates a Redis-based distributed locker
func NewRedisLocker(client *redis.Client, logger *slog.Logger) *RedisLocker {
	pool := goredis.NewPool(client)
	return &RedisLocker{
		rs:      redsync.New(pool),
		logger:  logger,
		mutexes: make(map[string]*redsync.Mutex),
	}
}

// Acquire attempts to take the lock. The mutex reference is kept so
// only the acquiring instance can release it.
func (r *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	mutex := r.rs.NewMutex(
		key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		// Redsync reports contention either as ErrFailed or as a
		// wrapped "lock already taken" error
		if errors.Is(err, redsync.ErrFailed) || strings.Contains(err.Error(), "lock already taken") {
			r.logger.Debug("lock held by another instance", "key", key)
			return false, nil
		}
		return false, fmt.Errorf("acquiring lock %s: %w", key, err)
	}

	r.mu.Lock()
	r.mutexes[key] = mutex
	r.mu.Unlock()

	r.logger.Debug("lock acquired", "key", key, "ttl", ttl)
	return true, nil
}

// Release releases the lock when this instance owns it
func (r *RedisLocker) Release(ctx context.Context, key string) error {
	r.mu.Lock()
	mutex, exists := r.mutexes[key]
	if exists {
		delete(r.mutexes, key)
	}
	r.mu.Unlock()

	if !exists {
		return nil
	}

	ok, err := mutex.UnlockContext(ctx)
	if err != nil {
		return fmt.Errorf("releasing lock %s: %w", key, err)
	}
	if !ok {
		r.logger.Debug("lock already expired", "key", key)
	}
	return nil
}
