package extractions

import (
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/pkg/query"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "extraction_results", "x").
	Project("id", "ID").
	Project("document_id", "DocumentID").
	Project("structured_data", "StructuredData").
	Project("field_confidences", "FieldConfidences").
	Project("aggregate_confidence", "AggregateConfidence").
	Project("raw_response", "RawResponse").
	Project("processing_time_ms", "ProcessingTimeMS").
	Project("tokens_used", "TokensUsed").
	Project("engine_id", "EngineID").
	Project("corrected_fields", "CorrectedFields").
	Project("reviewed_by", "ReviewedBy").
	Project("reviewed_at", "ReviewedAt").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for extraction queries.
type Filters struct {
	DocumentID    *uuid.UUID `json:"document_id,omitempty"`
	EngineID      *uuid.UUID `json:"engine_id,omitempty"`
	Reviewed      *bool      `json:"reviewed,omitempty"`
	MinConfidence *float64   `json:"min_confidence,omitempty"`
	MaxConfidence *float64   `json:"max_confidence,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	var unreviewed *bool
	if f.Reviewed != nil {
		v := !*f.Reviewed
		unreviewed = &v
	}

	return b.
		WhereEquals("DocumentID", f.DocumentID).
		WhereEquals("EngineID", f.EngineID).
		WhereNull("ReviewedAt", unreviewed).
		WhereRange("AggregateConfidence", f.MinConfidence, f.MaxConfidence)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if id, err := uuid.Parse(values.Get("document")); err == nil {
		f.DocumentID = &id
	}
	if id, err := uuid.Parse(values.Get("engine")); err == nil {
		f.EngineID = &id
	}
	if b, err := strconv.ParseBool(values.Get("reviewed")); err == nil {
		f.Reviewed = &b
	}
	if v, err := strconv.ParseFloat(values.Get("min_confidence"), 64); err == nil {
		f.MinConfidence = &v
	}
	if v, err := strconv.ParseFloat(values.Get("max_confidence"), 64); err == nil {
		f.MaxConfidence = &v
	}

	return f
}

func scanResult(s repository.Scanner) (Result, error) {
	var (
		x           Result
		data        repository.JSON[map[string]any]
		confidences repository.JSON[map[string]float64]
		raw         repository.JSON[any]
		corrected   repository.JSON[[]string]
	)
	err := s.Scan(
		&x.ID,
		&x.DocumentID,
		&data,
		&confidences,
		&x.AggregateConfidence,
		&raw,
		&x.ProcessingTimeMS,
		&x.TokensUsed,
		&x.EngineID,
		&corrected,
		&x.ReviewedBy,
		&x.ReviewedAt,
		&x.CreatedAt,
		&x.UpdatedAt,
	)
	if err != nil {
		return x, err
	}

	x.StructuredData = data.V
	x.FieldConfidences = confidences.V
	x.RawResponse = raw.V
	x.CorrectedFields = corrected.V
	if x.StructuredData == nil {
		x.StructuredData = map[string]any{}
	}
	if x.FieldConfidences == nil {
		x.FieldConfidences = map[string]float64{}
	}
	if x.CorrectedFields == nil {
		x.CorrectedFields = []string{}
	}
	return x, nil
}
