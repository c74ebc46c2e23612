// Package proposals carries registry field changes from accepted
// validation findings through review to application.
package proposals

import (
	"time"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/internal/registry"
)

// Status is a proposal lifecycle state.
type Status string

const (
	StatusProposed Status = "proposed"
	StatusApproved Status = "approved"
	StatusApplied  Status = "applied"
	StatusRejected Status = "rejected"
)

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusApplied || s == StatusRejected
}

// Proposal is a pending change to one registry field.
type Proposal struct {
	ID            uuid.UUID      `json:"id"`
	DocumentID    uuid.UUID      `json:"document_id"`
	ResultID      uuid.UUID      `json:"validation_result_id"`
	FindingID     uuid.UUID      `json:"finding_id"`
	TargetModel   registry.Model `json:"target_model"`
	TargetID      uuid.UUID      `json:"target_uuid"`
	FieldName     string         `json:"field_name"`
	CurrentValue  any            `json:"current_value"`
	ProposedValue any            `json:"proposed_value"`
	Status        Status         `json:"status"`
	ReviewedBy    *string        `json:"reviewed_by"`
	ReviewedAt    *time.Time     `json:"reviewed_at"`
	AppliedAt     *time.Time     `json:"applied_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// FromFinding is an accepted update_proposal finding.
type FromFinding struct {
	FindingID   uuid.UUID
	ResultID    uuid.UUID
	DocumentID  uuid.UUID
	FindingType string
	Field       string
	Details     map[string]any
}

// target reads the registry target out of the finding details.
func (f FromFinding) target() (registry.Model, uuid.UUID, error) {
	if f.FindingType != "update_proposal" {
		return "", uuid.Nil, core.Invalid("finding_type", "%q cannot become a proposal", f.FindingType)
	}
	if f.Field == "" {
		return "", uuid.Nil, core.Invalid("field", "is required")
	}

	model, _ := f.Details["target_model"].(string)
	if !registry.Model(model).Valid() {
		return "", uuid.Nil, core.Invalid("target_model", "%q is not a registry model", model)
	}

	raw, _ := f.Details["target_uuid"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", uuid.Nil, core.Invalid("target_uuid", "not a uuid")
	}
	return registry.Model(model), id, nil
}

// ReviewCommand approves or rejects a proposal.
type ReviewCommand struct {
	Status Status `json:"status"`
}

// Validate requires approved or rejected.
func (c ReviewCommand) Validate() error {
	if c.Status != StatusApproved && c.Status != StatusRejected {
		return core.Invalid("status", "must be approved or rejected")
	}
	return nil
}

// LockName is the lock serializing application of a proposal.
func LockName(id uuid.UUID) string {
	return "proposal:" + id.String()
}
