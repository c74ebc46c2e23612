package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	EnvAuthEnabled  = "CLAIMLENS_AUTH_ENABLED"
	EnvAuthMode     = "CLAIMLENS_AUTH_MODE"
	EnvAuthSecret   = "CLAIMLENS_AUTH_SECRET"
	EnvAuthIssuer   = "CLAIMLENS_AUTH_ISSUER"
	EnvAuthClientID = "CLAIMLENS_AUTH_CLIENT_ID"
)

// Authentication modes.
const (
	AuthModeJWT  = "jwt"
	AuthModeOIDC = "oidc"
)

// AuthConfig selects how bearer tokens are verified. Disabled auth admits
// every request with all rights and is meant for local development.
type AuthConfig struct {
	Enabled  *bool  `toml:"enabled"`
	Mode     string `toml:"mode"`
	Secret   string `toml:"secret"`
	Issuer   string `toml:"issuer"`
	ClientID string `toml:"client_id"`
}

// IsEnabled reports whether token verification is on. Defaults to true.
func (c *AuthConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *AuthConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *AuthConfig) Merge(overlay *AuthConfig) {
	if overlay.Enabled != nil {
		c.Enabled = overlay.Enabled
	}
	if overlay.Mode != "" {
		c.Mode = overlay.Mode
	}
	if overlay.Secret != "" {
		c.Secret = overlay.Secret
	}
	if overlay.Issuer != "" {
		c.Issuer = overlay.Issuer
	}
	if overlay.ClientID != "" {
		c.ClientID = overlay.ClientID
	}
}

func (c *AuthConfig) loadDefaults() {
	if c.Mode == "" {
		c.Mode = AuthModeJWT
	}
}

func (c *AuthConfig) loadEnv() {
	if v := os.Getenv(EnvAuthEnabled); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Enabled = &b
		}
	}
	if v := os.Getenv(EnvAuthMode); v != "" {
		c.Mode = v
	}
	if v := os.Getenv(EnvAuthSecret); v != "" {
		c.Secret = v
	}
	if v := os.Getenv(EnvAuthIssuer); v != "" {
		c.Issuer = v
	}
	if v := os.Getenv(EnvAuthClientID); v != "" {
		c.ClientID = v
	}
}

func (c *AuthConfig) validate() error {
	if !c.IsEnabled() {
		return nil
	}
	switch c.Mode {
	case AuthModeJWT:
		if len(c.Secret) < 32 {
			return fmt.Errorf("secret must be at least 32 bytes")
		}
	case AuthModeOIDC:
		if c.Issuer == "" || c.ClientID == "" {
			return fmt.Errorf("issuer and client_id required for oidc")
		}
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	return nil
}
