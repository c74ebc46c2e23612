// Package doctypes manages the catalog of document types that
// classification can assign and that routing, prompts, and capability
// scores can be specialized for.
package doctypes

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/core"
)

// DocumentType is a kind of claim document, e.g. an invoice or a discharge summary.
type DocumentType struct {
	ID                  uuid.UUID      `json:"id"`
	Code                string         `json:"code"`
	Name                string         `json:"name"`
	ExtractionTemplate  map[string]any `json:"extraction_template"`
	ClassificationHints *string        `json:"classification_hints"`
	IsActive            bool           `json:"is_active"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// Command carries the fields of a create or update.
type Command struct {
	Code                string         `json:"code"`
	Name                string         `json:"name"`
	ExtractionTemplate  map[string]any `json:"extraction_template"`
	ClassificationHints *string        `json:"classification_hints"`
	IsActive            *bool          `json:"is_active"`
}

// Validate checks the required fields.
func (c *Command) Validate() error {
	c.Code = strings.TrimSpace(c.Code)
	c.Name = strings.TrimSpace(c.Name)
	if c.Code == "" {
		return core.Invalid("code", "is required")
	}
	if c.Name == "" {
		return core.Invalid("name", "is required")
	}
	if c.ExtractionTemplate == nil {
		c.ExtractionTemplate = map[string]any{}
	}
	return nil
}

func (c *Command) active() bool {
	return c.IsActive == nil || *c.IsActive
}
