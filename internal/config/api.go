package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/abekarar/openimis-claimslens/pkg/formatting"
	"github.com/abekarar/openimis-claimslens/pkg/middleware"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "CLAIMLENS_CORS_ENABLED",
	Origins:          "CLAIMLENS_CORS_ORIGINS",
	AllowedMethods:   "CLAIMLENS_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "CLAIMLENS_CORS_ALLOWED_HEADERS",
	AllowCredentials: "CLAIMLENS_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "CLAIMLENS_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "CLAIMLENS_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "CLAIMLENS_PAGINATION_MAX_PAGE_SIZE",
}

// DefaultMimeTypes are the upload content types accepted when none are configured.
var DefaultMimeTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"image/tiff",
	"image/webp",
}

// APIConfig holds API routing, upload limits, CORS, and pagination settings.
type APIConfig struct {
	BasePath         string                `toml:"base_path"`
	MaxUploadSize    string                `toml:"max_upload_size"`
	AllowedMimeTypes []string              `toml:"allowed_mime_types"`
	CORS             middleware.CORSConfig `toml:"cors"`
	Pagination       pagination.Config     `toml:"pagination"`
}

// MaxUploadSizeBytes returns MaxUploadSize in bytes. Finalize guarantees it parses.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, _ := formatting.ParseBytes(c.MaxUploadSize)
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested CORS and pagination configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}
	if overlay.AllowedMimeTypes != nil {
		c.AllowedMimeTypes = overlay.AllowedMimeTypes
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "20MB"
	}
	if len(c.AllowedMimeTypes) == 0 {
		c.AllowedMimeTypes = slices.Clone(DefaultMimeTypes)
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("CLAIMLENS_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("CLAIMLENS_API_MAX_UPLOAD_SIZE"); v != "" {
		c.MaxUploadSize = v
	}
	if v := os.Getenv("CLAIMLENS_API_ALLOWED_MIME_TYPES"); v != "" {
		var types []string
		for t := range strings.SplitSeq(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
		c.AllowedMimeTypes = types
	}
}

func (c *APIConfig) validate() error {
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("invalid max_upload_size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("max_upload_size must be positive")
	}
	return nil
}
