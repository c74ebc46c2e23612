package config

import (
	"encoding/base64"
	"fmt"
	"os"
)

const EnvEnginesSecretKey = "CLAIMLENS_ENGINES_SECRET_KEY"

// EnginesConfig holds the key that seals engine API keys at rest.
type EnginesConfig struct {
	// SecretKey is 32 bytes, base64 encoded.
	SecretKey string `toml:"secret_key"`
}

// Key returns the decoded secret key. Finalize guarantees it decodes to 32 bytes.
func (c *EnginesConfig) Key() *[32]byte {
	raw, _ := base64.StdEncoding.DecodeString(c.SecretKey)
	var key [32]byte
	copy(key[:], raw)
	return &key
}

// Finalize applies environment variable overrides and validation.
func (c *EnginesConfig) Finalize() error {
	if v := os.Getenv(EnvEnginesSecretKey); v != "" {
		c.SecretKey = v
	}
	raw, err := base64.StdEncoding.DecodeString(c.SecretKey)
	if err != nil {
		return fmt.Errorf("invalid secret_key: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("secret_key must decode to 32 bytes, got %d", len(raw))
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *EnginesConfig) Merge(overlay *EnginesConfig) {
	if overlay.SecretKey != "" {
		c.SecretKey = overlay.SecretKey
	}
}
