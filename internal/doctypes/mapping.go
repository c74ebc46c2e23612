package doctypes

import (
	"net/url"
	"strconv"

	"github.com/abekarar/openimis-claimslens/pkg/query"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "document_types", "dt").
	Project("id", "ID").
	Project("code", "Code").
	Project("name", "Name").
	Project("extraction_template", "ExtractionTemplate").
	Project("classification_hints", "ClassificationHints").
	Project("is_active", "IsActive").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{Field: "Code"}

const returning = `RETURNING id, code, name, extraction_template, classification_hints, is_active, created_at, updated_at`

// Filters contains optional filtering criteria for document type queries.
type Filters struct {
	Code     *string `json:"code,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Code", f.Code).
		WhereEquals("IsActive", f.IsActive)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters
	if c := values.Get("code"); c != "" {
		f.Code = &c
	}
	if a := values.Get("is_active"); a != "" {
		if v, err := strconv.ParseBool(a); err == nil {
			f.IsActive = &v
		}
	}
	return f
}

func scanDocumentType(s repository.Scanner) (DocumentType, error) {
	var (
		dt       DocumentType
		template repository.JSON[map[string]any]
	)
	err := s.Scan(
		&dt.ID,
		&dt.Code,
		&dt.Name,
		&template,
		&dt.ClassificationHints,
		&dt.IsActive,
		&dt.CreatedAt,
		&dt.UpdatedAt,
	)
	dt.ExtractionTemplate = template.V
	return dt, err
}
