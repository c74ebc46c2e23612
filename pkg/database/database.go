// Package database owns the PostgreSQL pool (pgx through database/sql) and
// ties its connect and close to the lifecycle coordinator.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/abekarar/openimis-claimslens/pkg/lifecycle"
)

// ErrNotReady is returned by Ping outside the window between a successful
// startup and the beginning of shutdown.
var ErrNotReady = errors.New("database not ready")

// connectAttempts bounds the startup ping loop. Delays double from
// connectBackoff.
const (
	connectAttempts = 5
	connectBackoff  = 500 * time.Millisecond
)

type System interface {
	Connection() *sql.DB
	// Ping checks the pool, failing fast with ErrNotReady before startup.
	Ping(ctx context.Context) error
	Start(lc *lifecycle.Coordinator) error
}

type database struct {
	pool        *sql.DB
	logger      *slog.Logger
	connTimeout time.Duration
	up          atomic.Bool
}

// New configures the pool without dialing; the first connection is made by
// the startup hook registered in Start.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	pool, err := sql.Open("pgx", cfg.Dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return &database{
		pool:        pool,
		logger:      logger.With("system", "database", "host", cfg.Host, "name", cfg.Name),
		connTimeout: cfg.ConnTimeoutDuration(),
	}, nil
}

func (d *database) Connection() *sql.DB { return d.pool }

func (d *database) Ping(ctx context.Context) error {
	if !d.up.Load() {
		return ErrNotReady
	}
	return d.ping(ctx)
}

func (d *database) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.connTimeout)
	defer cancel()
	return d.pool.PingContext(ctx)
}

// connect pings until the server answers, backing off between attempts so
// a database that starts alongside the service is waited for.
func (d *database) connect(ctx context.Context) error {
	delay := connectBackoff
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = d.ping(ctx); err == nil {
			return nil
		}
		d.logger.Warn("database ping failed", "attempt", attempt, "error", err)
		if attempt == connectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

func (d *database) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup(func() error {
		if err := d.connect(lc.Context()); err != nil {
			return fmt.Errorf("database connect: %w", err)
		}
		d.up.Store(true)
		d.logger.Info("database connected")
		return nil
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		d.up.Store(false)
		if err := d.pool.Close(); err != nil {
			d.logger.Error("database close failed", "error", err)
			return
		}
		d.logger.Info("database closed")
	})
	return nil
}
