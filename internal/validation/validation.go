// Package validation compares extracted claim fields against the linked
// claim (upstream) and the registry (downstream), evaluates validation
// rules, and tracks the resolution of the findings it produces.
package validation

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/internal/rules"
)

// Type is a validation pass.
type Type string

const (
	TypeUpstream   Type = "upstream"
	TypeDownstream Type = "downstream"
)

// Types returns every validation pass in run order.
func Types() []Type {
	return []Type{TypeUpstream, TypeDownstream}
}

// OverallStatus summarizes a validation result.
type OverallStatus string

const (
	StatusMatched      OverallStatus = "matched"
	StatusMismatched   OverallStatus = "mismatched"
	StatusPartialMatch OverallStatus = "partial_match"
	StatusPending      OverallStatus = "pending"
	StatusError        OverallStatus = "error"
)

// FindingType classifies a finding.
type FindingType string

const (
	FindingViolation      FindingType = "violation"
	FindingWarning        FindingType = "warning"
	FindingUpdateProposal FindingType = "update_proposal"
)

// ResolutionStatus is the operator decision on a finding. Every status
// other than pending is final.
type ResolutionStatus string

const (
	ResolutionPending  ResolutionStatus = "pending"
	ResolutionAccepted ResolutionStatus = "accepted"
	ResolutionRejected ResolutionStatus = "rejected"
	ResolutionDeferred ResolutionStatus = "deferred"
)

// Comparison is the outcome of comparing one field.
type Comparison struct {
	OCRValue   any  `json:"ocr_value"`
	ClaimValue any  `json:"claim_value"`
	Match      bool `json:"match"`
}

// Result is an immutable record of one validation pass.
type Result struct {
	ID               uuid.UUID             `json:"id"`
	DocumentID       uuid.UUID             `json:"document_id"`
	ValidationType   Type                  `json:"validation_type"`
	OverallStatus    OverallStatus         `json:"overall_status"`
	FieldComparisons map[string]Comparison `json:"field_comparisons"`
	DiscrepancyCount int                   `json:"discrepancy_count"`
	MatchScore       float64               `json:"match_score"`
	Summary          string                `json:"summary"`
	ValidatedAt      time.Time             `json:"validated_at"`
	CreatedAt        time.Time             `json:"created_at"`
	Findings         []Finding             `json:"findings,omitempty"`
}

// Finding is a discrepancy or rule outcome of a validation pass.
type Finding struct {
	ID               uuid.UUID        `json:"id"`
	ResultID         uuid.UUID        `json:"validation_result_id"`
	DocumentID       uuid.UUID        `json:"document_id"`
	RuleID           *uuid.UUID       `json:"validation_rule_id"`
	RuleCode         *string          `json:"rule_code"`
	FindingType      FindingType      `json:"finding_type"`
	Severity         rules.Severity   `json:"severity"`
	Field            string           `json:"field"`
	Description      string           `json:"description"`
	Details          map[string]any   `json:"details"`
	ResolutionStatus ResolutionStatus `json:"resolution_status"`
	ResolvedBy       *string          `json:"resolved_by"`
	ResolvedAt       *time.Time       `json:"resolved_at"`
	CreatedAt        time.Time        `json:"created_at"`
}

// RunCommand requests validation passes for a document. No types runs
// every pass.
type RunCommand struct {
	DocumentID      uuid.UUID `json:"document_id"`
	ValidationTypes []Type    `json:"validation_types"`
}

// Validate checks the document id and normalizes the requested passes
// into run order without repeats.
func (c *RunCommand) Validate() error {
	if c.DocumentID == uuid.Nil {
		return core.Invalid("document_id", "is required")
	}
	if len(c.ValidationTypes) == 0 {
		c.ValidationTypes = Types()
		return nil
	}

	requested := c.ValidationTypes
	c.ValidationTypes = nil
	for _, t := range Types() {
		if slices.Contains(requested, t) {
			c.ValidationTypes = append(c.ValidationTypes, t)
		}
	}
	for _, t := range requested {
		if !slices.Contains(Types(), t) {
			return core.Invalid("validation_types", "%q must be upstream or downstream", t)
		}
	}
	return nil
}

// ResolveCommand records the operator decision on a finding.
type ResolveCommand struct {
	Status ResolutionStatus `json:"resolution_status"`
}

// Validate requires a final resolution status.
func (c ResolveCommand) Validate() error {
	switch c.Status {
	case ResolutionAccepted, ResolutionRejected, ResolutionDeferred:
		return nil
	}
	return core.Invalid("resolution_status", "must be accepted, rejected or deferred")
}
