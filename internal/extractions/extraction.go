// Package extractions stores engine extraction results and drives the
// confidence gate that completes a document, sends it to review, or
// fails it. Reviewers approve with corrections or reject.
package extractions

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/pkg/formatting"
)

// Result is the extraction stored for a document.
type Result struct {
	ID                  uuid.UUID          `json:"id"`
	DocumentID          uuid.UUID          `json:"document_id"`
	StructuredData      map[string]any     `json:"structured_data"`
	FieldConfidences    map[string]float64 `json:"field_confidences"`
	AggregateConfidence float64            `json:"aggregate_confidence"`
	RawResponse         any                `json:"raw_response"`
	ProcessingTimeMS    *int               `json:"processing_time_ms"`
	TokensUsed          *int               `json:"tokens_used"`
	EngineID            *uuid.UUID         `json:"engine_id"`
	CorrectedFields     []string           `json:"corrected_fields"`
	ReviewedBy          *string            `json:"reviewed_by"`
	ReviewedAt          *time.Time         `json:"reviewed_at"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// FieldValue is one extracted field in the engine's fields form.
type FieldValue struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// IngestCommand is an engine result reported by the pipeline. Fields may
// be given as Fields, or as StructuredData with FieldConfidences. When
// neither is present and RawResponse is a string, the fields are
// recovered from it.
type IngestCommand struct {
	Fields              map[string]FieldValue `json:"fields"`
	StructuredData      map[string]any        `json:"structured_data"`
	FieldConfidences    map[string]float64    `json:"field_confidences"`
	AggregateConfidence *float64              `json:"aggregate_confidence"`
	RawResponse         any                   `json:"raw_response"`
	ProcessingTimeMS    *int                  `json:"processing_time_ms"`
	TokensUsed          *int                  `json:"tokens_used"`
	EngineID            *uuid.UUID            `json:"engine_id"`
}

// enginePayload is the JSON an engine is prompted to return.
type enginePayload struct {
	Fields              map[string]FieldValue `json:"fields"`
	AggregateConfidence *float64              `json:"aggregate_confidence"`
}

// Parsed is a normalized ingest.
type Parsed struct {
	StructuredData      map[string]any
	FieldConfidences    map[string]float64
	AggregateConfidence float64
}

// Normalize resolves the field form of the command and validates it.
// Every confidence key must name a structured field and every confidence
// must be within [0,1]. A missing aggregate is the mean field confidence.
func (c *IngestCommand) Normalize() (Parsed, error) {
	fields := c.Fields
	aggregate := c.AggregateConfidence

	if fields == nil && c.StructuredData == nil {
		raw, ok := c.RawResponse.(string)
		if !ok {
			return Parsed{}, core.Invalid("fields", "fields, structured_data or a raw_response string is required")
		}
		payload, err := formatting.Parse[enginePayload](raw)
		if err != nil {
			return Parsed{}, core.Invalid("raw_response", "%v", err)
		}
		fields = payload.Fields
		if aggregate == nil {
			aggregate = payload.AggregateConfidence
		}
	}

	p := Parsed{
		StructuredData:   map[string]any{},
		FieldConfidences: map[string]float64{},
	}

	if fields != nil {
		for name, fv := range fields {
			p.StructuredData[name] = fv.Value
			p.FieldConfidences[name] = fv.Confidence
		}
	} else {
		maps.Copy(p.StructuredData, c.StructuredData)
		maps.Copy(p.FieldConfidences, c.FieldConfidences)
	}

	for name, conf := range p.FieldConfidences {
		if _, ok := p.StructuredData[name]; !ok {
			return Parsed{}, core.Invalid("field_confidences", "%q has no structured value", name)
		}
		if conf < 0 || conf > 1 {
			return Parsed{}, core.Invalid("field_confidences", "%q must be between 0 and 1", name)
		}
	}

	switch {
	case aggregate != nil:
		p.AggregateConfidence = *aggregate
	case len(p.FieldConfidences) > 0:
		var sum float64
		for _, conf := range p.FieldConfidences {
			sum += conf
		}
		p.AggregateConfidence = sum / float64(len(p.FieldConfidences))
	default:
		return Parsed{}, core.Invalid("aggregate_confidence", "is required when no field confidences are given")
	}

	if p.AggregateConfidence < 0 || p.AggregateConfidence > 1 {
		return Parsed{}, core.Invalid("aggregate_confidence", "must be between 0 and 1")
	}

	return p, nil
}

// ApproveCommand completes a reviewed extraction. Corrections overwrite
// structured values and carry full confidence.
type ApproveCommand struct {
	Corrections map[string]any `json:"corrections"`
}

// Apply writes the corrections into data and confidences and returns the
// corrected field names, sorted.
func (c ApproveCommand) Apply(data map[string]any, confidences map[string]float64) []string {
	names := make([]string, 0, len(c.Corrections))
	for name, v := range c.Corrections {
		data[name] = v
		confidences[name] = 1.0
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RejectCommand sends a reviewed extraction back. Reprocess returns the
// document to pending; otherwise it fails with Reason.
type RejectCommand struct {
	Reason    string `json:"reason"`
	Reprocess bool   `json:"reprocess"`
}
