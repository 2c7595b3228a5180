// Package locker coordinates work across service instances with
// distributed locks.
package locker

import (
	"context"
	"time"
)

// DistributedLocker provides distributed mutual exclusion.
// Implementations must be safe for concurrent use.
type DistributedLocker interface {
	// Acquire attempts to take the lock identified by key. Returns
	// false without error when another instance holds it. The lock
	// expires after ttl if never released.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release releases the lock identified by key. Safe to call when
	// this instance does not own the lock.
	Release(ctx context.Context, key string) error
}
