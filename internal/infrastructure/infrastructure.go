// Package infrastructure assembles the shared systems every domain module
// depends on: logging, lifecycle, database, blob storage, Redis, the
// per-document locker, and request authentication.
package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abekarar/openimis-claimslens/internal/config"
	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/pkg/auth"
	"github.com/abekarar/openimis-claimslens/pkg/database"
	"github.com/abekarar/openimis-claimslens/pkg/lifecycle"
	"github.com/abekarar/openimis-claimslens/pkg/lock"
	"github.com/abekarar/openimis-claimslens/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Redis     redis.UniversalClient
	Locker    lock.Locker
	Auth      auth.Authenticator
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeoutDuration(),
	})

	var locker lock.Locker
	switch cfg.Processing.LockBackend {
	case config.LockBackendPostgres:
		locker = lock.NewAdvisoryLocker(db.Connection())
	default:
		locker = lock.NewRedisLocker(rdb)
	}

	authn, err := newAuthenticator(&cfg.Auth, logger)
	if err != nil {
		return nil, fmt.Errorf("auth init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Redis:     rdb,
		Locker:    locker,
		Auth:      authn,
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	i.startRedis()
	return nil
}

func (i *Infrastructure) startRedis() {
	logger := i.Logger.With("system", "redis")

	i.Lifecycle.OnStartup(func() error {
		ctx, cancel := context.WithTimeout(i.Lifecycle.Context(), 5*time.Second)
		defer cancel()

		if err := i.Redis.Ping(ctx).Err(); err != nil {
			logger.Error("redis ping failed", "error", err)
			return fmt.Errorf("redis ping: %w", err)
		}
		logger.Info("redis connection established")
		return nil
	})

	i.Lifecycle.OnShutdown(func() {
		<-i.Lifecycle.Context().Done()
		if err := i.Redis.Close(); err != nil {
			logger.Error("redis close failed", "error", err)
			return
		}
		logger.Info("redis connection closed")
	})
}

func newAuthenticator(cfg *config.AuthConfig, logger *slog.Logger) (auth.Authenticator, error) {
	if !cfg.IsEnabled() {
		logger.Warn("authentication disabled, all requests run with every right")
		return auth.AllowAll{}, nil
	}

	if cfg.Mode == config.AuthModeOIDC {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return auth.NewOIDC(ctx, cfg.Issuer, cfg.ClientID, core.RightNames)
	}

	return auth.NewJWT(cfg.Secret, cfg.Issuer, core.RightNames), nil
}

// Scoped returns a shallow copy of i whose logger carries attrs. The
// underlying systems are shared.
func (i *Infrastructure) Scoped(attrs ...any) *Infrastructure {
	scoped := *i
	scoped.Logger = i.Logger.With(attrs...)
	return &scoped
}
