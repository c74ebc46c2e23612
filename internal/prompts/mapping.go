package prompts

import (
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/pkg/query"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "prompt_templates", "pt").
	Project("id", "ID").
	Project("prompt_type", "PromptType").
	Project("document_type_id", "DocumentTypeID").
	Project("version", "Version").
	Project("content", "Content").
	Project("change_summary", "ChangeSummary").
	Project("author", "Author").
	Project("is_active", "IsActive").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{Field: "CreatedAt", Descending: true}

const returning = `RETURNING id, prompt_type, document_type_id, version, content, change_summary, author, is_active, created_at`

// Filters contains optional filtering criteria for template queries.
// Global restricts results to templates without a document type.
type Filters struct {
	PromptType     *Type      `json:"prompt_type,omitempty"`
	DocumentTypeID *uuid.UUID `json:"document_type_id,omitempty"`
	Global         *bool      `json:"global,omitempty"`
	IsActive       *bool      `json:"is_active,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("PromptType", f.PromptType).
		WhereEquals("DocumentTypeID", f.DocumentTypeID).
		WhereNull("DocumentTypeID", f.Global).
		WhereEquals("IsActive", f.IsActive)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("prompt_type"); s != "" {
		t := Type(s)
		f.PromptType = &t
	}

	if s := values.Get("document_type"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			f.DocumentTypeID = &id
		}
	}

	if s := values.Get("global"); s != "" {
		if v, err := strconv.ParseBool(s); err == nil {
			f.Global = &v
		}
	}

	if s := values.Get("is_active"); s != "" {
		if v, err := strconv.ParseBool(s); err == nil {
			f.IsActive = &v
		}
	}

	return f
}

func scanTemplate(s repository.Scanner) (Template, error) {
	var t Template
	err := s.Scan(
		&t.ID,
		&t.PromptType,
		&t.DocumentTypeID,
		&t.Version,
		&t.Content,
		&t.ChangeSummary,
		&t.Author,
		&t.IsActive,
		&t.CreatedAt,
	)
	return t, err
}
