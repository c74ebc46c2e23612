package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvProcessingLockTTL            = "CLAIMLENS_PROCESSING_LOCK_TTL"
	EnvProcessingLockBackend        = "CLAIMLENS_PROCESSING_LOCK_BACKEND"
	EnvProcessingRegistryTimeout    = "CLAIMLENS_PROCESSING_REGISTRY_TIMEOUT"
	EnvProcessingPreprocessingQueue = "CLAIMLENS_PROCESSING_PREPROCESSING_QUEUE"
	EnvProcessingValidationQueue    = "CLAIMLENS_PROCESSING_VALIDATION_QUEUE"
	EnvProcessingValidationWorkers  = "CLAIMLENS_PROCESSING_VALIDATION_WORKERS"
	EnvProcessingDequeueTimeout     = "CLAIMLENS_PROCESSING_DEQUEUE_TIMEOUT"
)

// Lock backends.
const (
	LockBackendRedis    = "redis"
	LockBackendPostgres = "postgres"
)

// ProcessingConfig holds document pipeline coordination settings.
type ProcessingConfig struct {
	LockTTL            string `toml:"lock_ttl"`
	LockBackend        string `toml:"lock_backend"`
	RegistryTimeout    string `toml:"registry_timeout"`
	PreprocessingQueue string `toml:"preprocessing_queue"`
	ValidationQueue    string `toml:"validation_queue"`
	// ValidationWorkers is the number of in-process validation queue
	// consumers. Zero leaves the queue to external workers.
	ValidationWorkers *int   `toml:"validation_workers"`
	DequeueTimeout    string `toml:"dequeue_timeout"`
}

// DequeueTimeoutDuration returns DequeueTimeout as a time.Duration.
func (c *ProcessingConfig) DequeueTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.DequeueTimeout)
	return d
}

// Workers returns the configured validation consumer count.
func (c *ProcessingConfig) Workers() int {
	if c.ValidationWorkers == nil {
		return 0
	}
	return *c.ValidationWorkers
}

// LockTTLDuration returns LockTTL as a time.Duration.
func (c *ProcessingConfig) LockTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.LockTTL)
	return d
}

// RegistryTimeoutDuration returns RegistryTimeout as a time.Duration.
func (c *ProcessingConfig) RegistryTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.RegistryTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ProcessingConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ProcessingConfig) Merge(overlay *ProcessingConfig) {
	if overlay.LockTTL != "" {
		c.LockTTL = overlay.LockTTL
	}
	if overlay.LockBackend != "" {
		c.LockBackend = overlay.LockBackend
	}
	if overlay.RegistryTimeout != "" {
		c.RegistryTimeout = overlay.RegistryTimeout
	}
	if overlay.PreprocessingQueue != "" {
		c.PreprocessingQueue = overlay.PreprocessingQueue
	}
	if overlay.ValidationQueue != "" {
		c.ValidationQueue = overlay.ValidationQueue
	}
	if overlay.ValidationWorkers != nil {
		c.ValidationWorkers = overlay.ValidationWorkers
	}
	if overlay.DequeueTimeout != "" {
		c.DequeueTimeout = overlay.DequeueTimeout
	}
}

func (c *ProcessingConfig) loadDefaults() {
	if c.LockTTL == "" {
		c.LockTTL = "30s"
	}
	if c.LockBackend == "" {
		c.LockBackend = LockBackendRedis
	}
	if c.RegistryTimeout == "" {
		c.RegistryTimeout = "10s"
	}
	if c.PreprocessingQueue == "" {
		c.PreprocessingQueue = "claimlens.preprocessing"
	}
	if c.ValidationQueue == "" {
		c.ValidationQueue = "claimlens.validation"
	}
	if c.ValidationWorkers == nil {
		n := 2
		c.ValidationWorkers = &n
	}
	if c.DequeueTimeout == "" {
		c.DequeueTimeout = "5s"
	}
}

func (c *ProcessingConfig) loadEnv() {
	if v := os.Getenv(EnvProcessingLockTTL); v != "" {
		c.LockTTL = v
	}
	if v := os.Getenv(EnvProcessingLockBackend); v != "" {
		c.LockBackend = v
	}
	if v := os.Getenv(EnvProcessingRegistryTimeout); v != "" {
		c.RegistryTimeout = v
	}
	if v := os.Getenv(EnvProcessingPreprocessingQueue); v != "" {
		c.PreprocessingQueue = v
	}
	if v := os.Getenv(EnvProcessingValidationQueue); v != "" {
		c.ValidationQueue = v
	}
	if v := os.Getenv(EnvProcessingValidationWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ValidationWorkers = &n
		}
	}
	if v := os.Getenv(EnvProcessingDequeueTimeout); v != "" {
		c.DequeueTimeout = v
	}
}

func (c *ProcessingConfig) validate() error {
	if d, err := time.ParseDuration(c.LockTTL); err != nil || d <= 0 {
		return fmt.Errorf("invalid lock_ttl: %q", c.LockTTL)
	}
	if d, err := time.ParseDuration(c.RegistryTimeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid registry_timeout: %q", c.RegistryTimeout)
	}
	if d, err := time.ParseDuration(c.DequeueTimeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid dequeue_timeout: %q", c.DequeueTimeout)
	}
	if c.Workers() < 0 {
		return fmt.Errorf("validation_workers must not be negative")
	}
	if c.LockBackend != LockBackendRedis && c.LockBackend != LockBackendPostgres {
		return fmt.Errorf("unknown lock_backend %q", c.LockBackend)
	}
	return nil
}
