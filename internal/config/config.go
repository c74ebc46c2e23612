// Package config loads the service configuration from TOML files and
// CLAIMLENS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/abekarar/openimis-claimslens/pkg/database"
	"github.com/abekarar/openimis-claimslens/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvClaimLensConfigDir       = "CLAIMLENS_CONFIG_DIR"
	EnvClaimLensEnv             = "CLAIMLENS_ENV"
	EnvClaimLensShutdownTimeout = "CLAIMLENS_SHUTDOWN_TIMEOUT"
	EnvClaimLensVersion         = "CLAIMLENS_VERSION"
)

// DatabaseEnv names the CLAIMLENS_DB_* variables. cmd/migrate shares it.
var DatabaseEnv = &database.Env{
	Host:            "CLAIMLENS_DB_HOST",
	Port:            "CLAIMLENS_DB_PORT",
	Name:            "CLAIMLENS_DB_NAME",
	User:            "CLAIMLENS_DB_USER",
	Password:        "CLAIMLENS_DB_PASSWORD",
	SSLMode:         "CLAIMLENS_DB_SSL_MODE",
	MaxOpenConns:    "CLAIMLENS_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "CLAIMLENS_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "CLAIMLENS_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "CLAIMLENS_DB_CONN_TIMEOUT",
	QueryTimeout:    "CLAIMLENS_DB_QUERY_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "CLAIMLENS_STORAGE_CONTAINER_NAME",
	ConnectionString: "CLAIMLENS_STORAGE_CONNECTION_STRING",
	AccountURL:       "CLAIMLENS_STORAGE_ACCOUNT_URL",
	MaxRetries:       "CLAIMLENS_STORAGE_MAX_RETRIES",
	RetryDelay:       "CLAIMLENS_STORAGE_RETRY_DELAY",
}

// Config is the root configuration for the ClaimLens service.
type Config struct {
	Server          ServerConfig     `toml:"server"`
	Database        database.Config  `toml:"database"`
	Storage         storage.Config   `toml:"storage"`
	Redis           RedisConfig      `toml:"redis"`
	Auth            AuthConfig       `toml:"auth"`
	API             APIConfig        `toml:"api"`
	Processing      ProcessingConfig `toml:"processing"`
	Engines         EnginesConfig    `toml:"engines"`
	ShutdownTimeout string           `toml:"shutdown_timeout"`
	Version         string           `toml:"version"`
}

// Env returns the CLAIMLENS_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvClaimLensEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads configuration from CLAIMLENS_CONFIG_DIR, or the working
// directory when unset.
func Load() (*Config, error) {
	dir := os.Getenv(EnvClaimLensConfigDir)
	if dir == "" {
		dir = "."
	}
	return LoadFrom(dir)
}

// LoadFrom layers config.toml, then config.<CLAIMLENS_ENV>.toml, then
// CLAIMLENS_* variables and defaults. Either file may be absent.
func LoadFrom(dir string) (*Config, error) {
	cfg := &Config{}
	if err := decodeFile(filepath.Join(dir, BaseConfigFile), cfg); err != nil {
		return nil, err
	}

	if env := os.Getenv(EnvClaimLensEnv); env != "" {
		overlay := &Config{}
		path := filepath.Join(dir, fmt.Sprintf(OverlayConfigPattern, env))
		if err := decodeFile(path, overlay); err != nil {
			return nil, fmt.Errorf("overlay: %w", err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}
	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Redis.Merge(&overlay.Redis)
	c.Auth.Merge(&overlay.Auth)
	c.API.Merge(&overlay.API)
	c.Processing.Merge(&overlay.Processing)
	c.Engines.Merge(&overlay.Engines)
}

func (c *Config) finalize() error {
	if c.ShutdownTimeout = envOr(EnvClaimLensShutdownTimeout, c.ShutdownTimeout, "30s"); !validDuration(c.ShutdownTimeout) {
		return fmt.Errorf("invalid shutdown_timeout %q", c.ShutdownTimeout)
	}
	c.Version = envOr(EnvClaimLensVersion, c.Version, "0.1.0")

	sections := []struct {
		name     string
		finalize func() error
	}{
		{"server", c.Server.Finalize},
		{"database", func() error { return c.Database.Finalize(DatabaseEnv) }},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
		{"redis", c.Redis.Finalize},
		{"auth", c.Auth.Finalize},
		{"api", c.API.Finalize},
		{"processing", c.Processing.Finalize},
		{"engines", c.Engines.Finalize},
	}
	for _, s := range sections {
		if err := s.finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// envOr picks the environment value, then current, then def.
func envOr(name, current, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	if current != "" {
		return current
	}
	return def
}

func validDuration(s string) bool {
	_, err := time.ParseDuration(s)
	return err == nil
}

// decodeFile unmarshals path into cfg. A missing file leaves cfg untouched.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
