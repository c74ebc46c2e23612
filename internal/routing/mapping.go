package routing

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/pkg/query"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

var ruleProjection = query.
	NewProjectionMap("public", "engine_routing_rules", "rr").
	Project("id", "ID").
	Project("engine_config_id", "EngineID").
	Project("language", "Language").
	Project("document_type_id", "DocumentTypeID").
	Project("min_confidence", "MinConfidence").
	Project("priority", "Priority").
	Project("is_active", "IsActive").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Join("public", "engine_configs", "e", "JOIN", "rr.engine_config_id = e.id").
	Project("name", "EngineName")

var defaultRuleSort = query.SortField{Field: "Priority"}

// RuleFilters contains optional filtering criteria for rule queries.
type RuleFilters struct {
	EngineID       *uuid.UUID `json:"engine_config_id,omitempty"`
	Language       *string    `json:"language,omitempty"`
	DocumentTypeID *uuid.UUID `json:"document_type_id,omitempty"`
	IsActive       *bool      `json:"is_active,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f RuleFilters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("EngineID", f.EngineID).
		WhereEquals("Language", f.Language).
		WhereEquals("DocumentTypeID", f.DocumentTypeID).
		WhereEquals("IsActive", f.IsActive)
}

// RuleFiltersFromQuery extracts filter values from URL query parameters.
func RuleFiltersFromQuery(values url.Values) RuleFilters {
	var f RuleFilters
	if v, err := uuid.Parse(values.Get("engine_config_id")); err == nil {
		f.EngineID = &v
	}
	if l := values.Get("language"); l != "" {
		l = strings.ToLower(l)
		f.Language = &l
	}
	if v, err := uuid.Parse(values.Get("document_type_id")); err == nil {
		f.DocumentTypeID = &v
	}
	if a := values.Get("is_active"); a != "" {
		if v, err := strconv.ParseBool(a); err == nil {
			f.IsActive = &v
		}
	}
	return f
}

const returningRule = `RETURNING id`

func scanRule(s repository.Scanner) (Rule, error) {
	var r Rule
	err := s.Scan(
		&r.ID,
		&r.EngineID,
		&r.Language,
		&r.DocumentTypeID,
		&r.MinConfidence,
		&r.Priority,
		&r.IsActive,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.EngineName,
	)
	return r, err
}

func scanPolicy(s repository.Scanner) (Policy, error) {
	var p Policy
	err := s.Scan(&p.AccuracyWeight, &p.CostWeight, &p.SpeedWeight, &p.UpdatedAt)
	return p, err
}
