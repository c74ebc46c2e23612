package storage

import (
	"cmp"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds Azure Blob Storage connection parameters.
// Either ConnectionString or AccountURL must be set; AccountURL authenticates
// with the ambient Azure credential chain.
type Config struct {
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	AccountURL       string `toml:"account_url"`
	MaxRetries       int32  `toml:"max_retries"`
	RetryDelay       string `toml:"retry_delay"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	ContainerName    string
	ConnectionString string
	AccountURL       string
	MaxRetries       string
	RetryDelay       string
}

// RetryDelayDuration returns RetryDelay as a time.Duration.
func (c *Config) RetryDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryDelay)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.ContainerName = cmp.Or(c.ContainerName, "claimlens-documents")
	c.MaxRetries = cmp.Or(c.MaxRetries, 3)
	c.RetryDelay = cmp.Or(c.RetryDelay, "500ms")
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	c.ContainerName = cmp.Or(overlay.ContainerName, c.ContainerName)
	c.ConnectionString = cmp.Or(overlay.ConnectionString, c.ConnectionString)
	c.AccountURL = cmp.Or(overlay.AccountURL, c.AccountURL)
	c.MaxRetries = cmp.Or(overlay.MaxRetries, c.MaxRetries)
	c.RetryDelay = cmp.Or(overlay.RetryDelay, c.RetryDelay)
}

func (c *Config) loadEnv(env *Env) {
	c.ContainerName = cmp.Or(getenv(env.ContainerName), c.ContainerName)
	c.ConnectionString = cmp.Or(getenv(env.ConnectionString), c.ConnectionString)
	c.AccountURL = cmp.Or(getenv(env.AccountURL), c.AccountURL)
	c.RetryDelay = cmp.Or(getenv(env.RetryDelay), c.RetryDelay)
	if n, err := strconv.ParseInt(getenv(env.MaxRetries), 10, 32); err == nil && n >= 0 {
		c.MaxRetries = int32(n)
	}
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// validContainer follows the Azure naming rule: 3 to 63 lowercase letters,
// digits and single hyphens, starting and ending alphanumeric.
func validContainer(name string) bool {
	if len(name) < 3 || len(name) > 63 || strings.Contains(name, "--") {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '-' && i > 0 && i < len(name)-1:
		default:
			return false
		}
	}
	return true
}

func (c *Config) validate() error {
	switch {
	case !validContainer(c.ContainerName):
		return fmt.Errorf("invalid container_name %q", c.ContainerName)
	case c.ConnectionString == "" && c.AccountURL == "":
		return fmt.Errorf("connection_string or account_url required")
	case c.MaxRetries < 0:
		return fmt.Errorf("max_retries must not be negative")
	}
	if _, err := time.ParseDuration(c.RetryDelay); err != nil {
		return fmt.Errorf("invalid retry_delay: %w", err)
	}
	return nil
}
