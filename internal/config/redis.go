package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvRedisAddr        = "CLAIMLENS_REDIS_ADDR"
	EnvRedisPassword    = "CLAIMLENS_REDIS_PASSWORD"
	EnvRedisDB          = "CLAIMLENS_REDIS_DB"
	EnvRedisDialTimeout = "CLAIMLENS_REDIS_DIAL_TIMEOUT"
)

// RedisConfig holds the connection used for document locks and pipeline queues.
type RedisConfig struct {
	Addr        string `toml:"addr"`
	Password    string `toml:"password"`
	DB          int    `toml:"db"`
	DialTimeout string `toml:"dial_timeout"`
}

// DialTimeoutDuration returns DialTimeout as a time.Duration.
func (c *RedisConfig) DialTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.DialTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *RedisConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *RedisConfig) Merge(overlay *RedisConfig) {
	if overlay.Addr != "" {
		c.Addr = overlay.Addr
	}
	if overlay.Password != "" {
		c.Password = overlay.Password
	}
	if overlay.DB != 0 {
		c.DB = overlay.DB
	}
	if overlay.DialTimeout != "" {
		c.DialTimeout = overlay.DialTimeout
	}
}

func (c *RedisConfig) loadDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "5s"
	}
}

func (c *RedisConfig) loadEnv() {
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Addr = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		c.Password = v
	}
	if v := os.Getenv(EnvRedisDB); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DB = n
		}
	}
	if v := os.Getenv(EnvRedisDialTimeout); v != "" {
		c.DialTimeout = v
	}
}

func (c *RedisConfig) validate() error {
	if c.DB < 0 {
		return fmt.Errorf("invalid db: %d", c.DB)
	}
	if _, err := time.ParseDuration(c.DialTimeout); err != nil {
		return fmt.Errorf("invalid dial_timeout: %w", err)
	}
	return nil
}
