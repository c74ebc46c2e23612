// Package lock provides named, expiring mutual exclusion across service instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrHeld indicates the named lock is held by another owner.
var ErrHeld = errors.New("lock held by another owner")

// Locker acquires and releases named locks.
type Locker interface {
	// Acquire attempts to take the lock without blocking.
	// Returns false when another owner holds it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	// Release drops the lock if this owner holds it. Releasing a lock that
	// is not held or has expired is not an error.
	Release(ctx context.Context, name string) error
}

// Guard runs fn while holding the named lock. It returns ErrHeld without
// calling fn when the lock is taken. The lock is released on a context
// detached from ctx so cancellation of the caller never strands it. A
// failed release does not change fn's result; it is logged at Warn, and
// the lock stays held until its TTL runs out.
func Guard(ctx context.Context, l Locker, name string, ttl time.Duration, logger *slog.Logger, fn func(ctx context.Context) error) error {
	ok, err := l.Acquire(ctx, name, ttl)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrHeld)
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := l.Release(releaseCtx, name); err != nil {
			logger.Warn("lock release failed", "lock", name, "ttl", ttl, "error", err)
		}
	}()

	return fn(ctx)
}
