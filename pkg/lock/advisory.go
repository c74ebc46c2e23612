package lock

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

// AdvisoryLocker implements Locker with Postgres session advisory locks.
// Each held lock pins a dedicated connection until Release; the ttl is
// ignored because advisory locks end with their session.
type AdvisoryLocker struct {
	db    *sql.DB
	mu    sync.Mutex
	conns map[string]*sql.Conn
}

// NewAdvisoryLocker creates an AdvisoryLocker over db.
func NewAdvisoryLocker(db *sql.DB) *AdvisoryLocker {
	return &AdvisoryLocker{
		db:    db,
		conns: make(map[string]*sql.Conn),
	}
}

func (l *AdvisoryLocker) Acquire(ctx context.Context, name string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	_, held := l.conns[name]
	l.mu.Unlock()
	if held {
		return false, nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}

	var ok bool
	key := repository.HashKey(keyPrefix + name)
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok); err != nil {
		conn.Close()
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		conn.Close()
		return false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, raced := l.conns[name]; raced {
		_, _ = conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", key)
		conn.Close()
		return false, nil
	}
	l.conns[name] = conn
	return true, nil
}

func (l *AdvisoryLocker) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	conn, ok := l.conns[name]
	delete(l.conns, name)
	l.mu.Unlock()

	if !ok {
		return nil
	}
	defer conn.Close()

	key := repository.HashKey(keyPrefix + name)
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", key); err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}
