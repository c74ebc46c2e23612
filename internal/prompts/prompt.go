// Package prompts implements versioned prompt templates for the
// classification and extraction stages of the document pipeline.
// Templates are scoped globally or to a document type; each scope
// has at most one active version.
package prompts

import (
	"time"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/core"
)

// Template is an immutable version of a prompt.
type Template struct {
	ID             uuid.UUID  `json:"id"`
	PromptType     Type       `json:"prompt_type"`
	DocumentTypeID *uuid.UUID `json:"document_type_id"`
	Version        int        `json:"version"`
	Content        string     `json:"content"`
	ChangeSummary  *string    `json:"change_summary"`
	Author         string     `json:"author"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CreateCommand carries the data for a new template version.
// The author is taken from the request principal.
type CreateCommand struct {
	PromptType     Type       `json:"prompt_type"`
	DocumentTypeID *uuid.UUID `json:"document_type_id"`
	Content        string     `json:"content"`
	ChangeSummary  *string    `json:"change_summary"`
	Activate       bool       `json:"activate"`
}

func (c *CreateCommand) Validate() error {
	if !c.PromptType.Valid() {
		return core.Invalid("prompt_type", "must be classification or extraction")
	}
	if c.Content == "" {
		return core.Invalid("content", "is required")
	}
	return nil
}

// Source identifies where resolved prompt content came from.
type Source string

const (
	SourceDocumentType Source = "document_type"
	SourceGlobal       Source = "global"
	SourceDefault      Source = "default"
)

// Resolution is the effective prompt for a type and optional document type.
type Resolution struct {
	PromptType Type       `json:"prompt_type"`
	Content    string     `json:"content"`
	Source     Source     `json:"source"`
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
	Version    *int       `json:"version,omitempty"`
}

// Key is the advisory lock key for the version sequence of a scope.
func Key(t Type, documentTypeID *uuid.UUID) string {
	scope := "global"
	if documentTypeID != nil {
		scope = documentTypeID.String()
	}
	return "prompt_templates:" + string(t) + ":" + scope
}
