package rules

import (
	"net/url"
	"strconv"

	"github.com/abekarar/openimis-claimslens/pkg/query"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "validation_rules", "vr").
	Project("id", "ID").
	Project("code", "Code").
	Project("name", "Name").
	Project("rule_type", "RuleType").
	Project("rule_definition", "Definition").
	Project("severity", "Severity").
	Project("is_active", "IsActive").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{Field: "Code"}

const returning = `RETURNING id, code, name, rule_type, rule_definition, severity, is_active, created_at, updated_at`

// Filters contains optional filtering criteria for rule queries.
type Filters struct {
	RuleType *Type     `json:"rule_type,omitempty"`
	Severity *Severity `json:"severity,omitempty"`
	IsActive *bool     `json:"is_active,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("RuleType", f.RuleType).
		WhereEquals("Severity", f.Severity).
		WhereEquals("IsActive", f.IsActive)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters
	if t := Type(values.Get("rule_type")); t.Valid() {
		f.RuleType = &t
	}
	if s := Severity(values.Get("severity")); s.Valid() {
		f.Severity = &s
	}
	if v, err := strconv.ParseBool(values.Get("is_active")); err == nil {
		f.IsActive = &v
	}
	return f
}

func scanRule(s repository.Scanner) (Rule, error) {
	var (
		r   Rule
		def repository.JSON[map[string]any]
	)
	err := s.Scan(
		&r.ID,
		&r.Code,
		&r.Name,
		&r.RuleType,
		&def,
		&r.Severity,
		&r.IsActive,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	r.Definition = def.V
	if r.Definition == nil {
		r.Definition = map[string]any{}
	}
	return r, err
}
