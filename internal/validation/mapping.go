package validation

import (
	"net/url"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/rules"
	"github.com/abekarar/openimis-claimslens/pkg/query"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

var resultProjection = query.
	NewProjectionMap("public", "validation_results", "vr").
	Project("id", "ID").
	Project("document_id", "DocumentID").
	Project("validation_type", "ValidationType").
	Project("overall_status", "OverallStatus").
	Project("field_comparisons", "FieldComparisons").
	Project("discrepancy_count", "DiscrepancyCount").
	Project("match_score", "MatchScore").
	Project("summary", "Summary").
	Project("validated_at", "ValidatedAt").
	Project("created_at", "CreatedAt")

var findingProjection = query.
	NewProjectionMap("public", "validation_findings", "f").
	Project("id", "ID").
	Project("validation_result_id", "ResultID").
	Project("validation_rule_id", "RuleID").
	Project("finding_type", "FindingType").
	Project("severity", "Severity").
	Project("field", "Field").
	Project("description", "Description").
	Project("details", "Details").
	Project("resolution_status", "ResolutionStatus").
	Project("resolved_by", "ResolvedBy").
	Project("resolved_at", "ResolvedAt").
	Project("created_at", "CreatedAt").
	Join("public", "validation_results", "vr", "JOIN", "f.validation_result_id = vr.id").
	Project("document_id", "DocumentID").
	Join("public", "validation_rules", "r", "LEFT JOIN", "f.validation_rule_id = r.id").
	Project("code", "RuleCode")

var resultSort = query.SortField{Field: "CreatedAt", Descending: true}

var findingSort = query.SortField{Field: "CreatedAt"}

// ResultFilters contains optional filtering criteria for result queries.
type ResultFilters struct {
	DocumentID     *uuid.UUID     `json:"document_id,omitempty"`
	ValidationType *Type          `json:"validation_type,omitempty"`
	OverallStatus  *OverallStatus `json:"overall_status,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f ResultFilters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("DocumentID", f.DocumentID).
		WhereEquals("ValidationType", f.ValidationType).
		WhereEquals("OverallStatus", f.OverallStatus)
}

// ResultFiltersFromQuery extracts result filters from URL query parameters.
func ResultFiltersFromQuery(values url.Values) ResultFilters {
	var f ResultFilters
	if id, err := uuid.Parse(values.Get("document")); err == nil {
		f.DocumentID = &id
	}
	if s := values.Get("validation_type"); s != "" {
		t := Type(s)
		f.ValidationType = &t
	}
	if s := values.Get("overall_status"); s != "" {
		st := OverallStatus(s)
		f.OverallStatus = &st
	}
	return f
}

// FindingFilters contains optional filtering criteria for finding queries.
type FindingFilters struct {
	ResultID         *uuid.UUID        `json:"validation_result_id,omitempty"`
	DocumentID       *uuid.UUID        `json:"document_id,omitempty"`
	RuleID           *uuid.UUID        `json:"validation_rule_id,omitempty"`
	FindingType      *FindingType      `json:"finding_type,omitempty"`
	Severity         *rules.Severity   `json:"severity,omitempty"`
	ResolutionStatus *ResolutionStatus `json:"resolution_status,omitempty"`
	Field            *string           `json:"field,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f FindingFilters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ResultID", f.ResultID).
		WhereEquals("DocumentID", f.DocumentID).
		WhereEquals("RuleID", f.RuleID).
		WhereEquals("FindingType", f.FindingType).
		WhereEquals("Severity", f.Severity).
		WhereEquals("ResolutionStatus", f.ResolutionStatus).
		WhereContains("Field", f.Field)
}

// FindingFiltersFromQuery extracts finding filters from URL query parameters.
func FindingFiltersFromQuery(values url.Values) FindingFilters {
	var f FindingFilters
	if id, err := uuid.Parse(values.Get("result")); err == nil {
		f.ResultID = &id
	}
	if id, err := uuid.Parse(values.Get("document")); err == nil {
		f.DocumentID = &id
	}
	if id, err := uuid.Parse(values.Get("rule")); err == nil {
		f.RuleID = &id
	}
	if s := values.Get("finding_type"); s != "" {
		t := FindingType(s)
		f.FindingType = &t
	}
	if s := rules.Severity(values.Get("severity")); s.Valid() {
		f.Severity = &s
	}
	if s := values.Get("resolution_status"); s != "" {
		st := ResolutionStatus(s)
		f.ResolutionStatus = &st
	}
	if s := values.Get("field"); s != "" {
		f.Field = &s
	}
	return f
}

func scanResult(s repository.Scanner) (Result, error) {
	var (
		r           Result
		comparisons repository.JSON[map[string]Comparison]
	)
	err := s.Scan(
		&r.ID,
		&r.DocumentID,
		&r.ValidationType,
		&r.OverallStatus,
		&comparisons,
		&r.DiscrepancyCount,
		&r.MatchScore,
		&r.Summary,
		&r.ValidatedAt,
		&r.CreatedAt,
	)
	r.FieldComparisons = comparisons.V
	return r, err
}

func scanFinding(s repository.Scanner) (Finding, error) {
	var (
		f       Finding
		details repository.JSON[map[string]any]
	)
	err := s.Scan(
		&f.ID,
		&f.ResultID,
		&f.RuleID,
		&f.FindingType,
		&f.Severity,
		&f.Field,
		&f.Description,
		&details,
		&f.ResolutionStatus,
		&f.ResolvedBy,
		&f.ResolvedAt,
		&f.CreatedAt,
		&f.DocumentID,
		&f.RuleCode,
	)
	f.Details = details.V
	return f, err
}
