package proposals

import (
	"net/url"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/registry"
	"github.com/abekarar/openimis-claimslens/pkg/query"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "registry_proposals", "p").
	Project("id", "ID").
	Project("document_id", "DocumentID").
	Project("validation_result_id", "ResultID").
	Project("finding_id", "FindingID").
	Project("target_model", "TargetModel").
	Project("target_uuid", "TargetID").
	Project("field_name", "FieldName").
	Project("current_value", "CurrentValue").
	Project("proposed_value", "ProposedValue").
	Project("status", "Status").
	Project("reviewed_by", "ReviewedBy").
	Project("reviewed_at", "ReviewedAt").
	Project("applied_at", "AppliedAt").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

const returning = `RETURNING id, document_id, validation_result_id, finding_id, target_model, target_uuid,
	field_name, current_value, proposed_value, status, reviewed_by, reviewed_at, applied_at, created_at, updated_at`

// Filters contains optional filtering criteria for proposal queries.
type Filters struct {
	Status      *Status         `json:"status,omitempty"`
	DocumentID  *uuid.UUID      `json:"document_id,omitempty"`
	TargetModel *registry.Model `json:"target_model,omitempty"`
	TargetID    *uuid.UUID      `json:"target_uuid,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("DocumentID", f.DocumentID).
		WhereEquals("TargetModel", f.TargetModel).
		WhereEquals("TargetID", f.TargetID)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters
	if s := values.Get("status"); s != "" {
		st := Status(s)
		f.Status = &st
	}
	if id, err := uuid.Parse(values.Get("document")); err == nil {
		f.DocumentID = &id
	}
	if m := registry.Model(values.Get("target_model")); m.Valid() {
		f.TargetModel = &m
	}
	if id, err := uuid.Parse(values.Get("target_uuid")); err == nil {
		f.TargetID = &id
	}
	return f
}

func scanProposal(s repository.Scanner) (Proposal, error) {
	var (
		p                 Proposal
		current, proposed repository.JSON[any]
	)
	err := s.Scan(
		&p.ID,
		&p.DocumentID,
		&p.ResultID,
		&p.FindingID,
		&p.TargetModel,
		&p.TargetID,
		&p.FieldName,
		&current,
		&proposed,
		&p.Status,
		&p.ReviewedBy,
		&p.ReviewedAt,
		&p.AppliedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	p.CurrentValue = current.V
	p.ProposedValue = proposed.V
	return p, err
}
