// Package capabilities stores the accuracy, cost, and speed scores of each
// engine per language and document type. Routing reads them on every
// decision, so writes take effect immediately.
package capabilities

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/core"
)

// Score is a capability measurement for (engine, language, document type).
// A nil DocumentTypeID applies to every type in the language.
type Score struct {
	ID             uuid.UUID  `json:"id"`
	EngineID       uuid.UUID  `json:"engine_config_id"`
	EngineName     string     `json:"engine_name"`
	Language       string     `json:"language"`
	DocumentTypeID *uuid.UUID `json:"document_type_id"`
	AccuracyScore  float64    `json:"accuracy_score"`
	CostPerPage    float64    `json:"cost_per_page"`
	SpeedScore     float64    `json:"speed_score"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// UpsertCommand sets the active score for its tuple.
type UpsertCommand struct {
	EngineID       uuid.UUID  `json:"engine_config_id"`
	Language       string     `json:"language"`
	DocumentTypeID *uuid.UUID `json:"document_type_id"`
	AccuracyScore  float64    `json:"accuracy_score"`
	CostPerPage    float64    `json:"cost_per_page"`
	SpeedScore     float64    `json:"speed_score"`
}

// Validate checks ranges: accuracy and speed in [0,100], cost >= 0.
func (c *UpsertCommand) Validate() error {
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
	if c.EngineID == uuid.Nil {
		return core.Invalid("engine_config_id", "is required")
	}
	if c.Language == "" {
		return core.Invalid("language", "is required")
	}
	if c.AccuracyScore < 0 || c.AccuracyScore > 100 {
		return core.Invalid("accuracy_score", "must be between 0 and 100")
	}
	if c.SpeedScore < 0 || c.SpeedScore > 100 {
		return core.Invalid("speed_score", "must be between 0 and 100")
	}
	if c.CostPerPage < 0 {
		return core.Invalid("cost_per_page", "must not be negative")
	}
	return nil
}

// TupleKey identifies the uniqueness tuple of a score.
func TupleKey(engineID uuid.UUID, language string, documentTypeID *uuid.UUID) string {
	dt := uuid.Nil
	if documentTypeID != nil {
		dt = *documentTypeID
	}
	return "capability:" + engineID.String() + ":" + language + ":" + dt.String()
}
