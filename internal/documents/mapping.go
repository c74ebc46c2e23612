package documents

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/pkg/query"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "documents", "d").
	Project("id", "ID").
	Project("filename", "Filename").
	Project("content_type", "ContentType").
	Project("size_bytes", "SizeBytes").
	Project("page_count", "PageCount").
	Project("storage_key", "StorageKey").
	Project("status", "Status").
	Project("error_message", "ErrorMessage").
	Project("document_type_id", "DocumentTypeID").
	Project("classification_confidence", "ClassificationConfidence").
	Project("engine_id", "EngineID").
	Project("claim_id", "ClaimID").
	Project("language", "Language").
	Project("processing_started_at", "ProcessingStartedAt").
	Project("completed_at", "CompletedAt").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Join("public", "document_types", "dt", "LEFT JOIN", "d.document_type_id = dt.id").
	Project("code", "DocumentTypeCode").
	Join("public", "engine_configs", "e", "LEFT JOIN", "d.engine_id = e.id").
	Project("name", "EngineName")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for document queries.
// Linked selects documents with (true) or without (false) a claim.
type Filters struct {
	Status         *Status    `json:"status,omitempty"`
	Language       *string    `json:"language,omitempty"`
	DocumentTypeID *uuid.UUID `json:"document_type_id,omitempty"`
	EngineID       *uuid.UUID `json:"engine_id,omitempty"`
	ClaimID        *uuid.UUID `json:"claim_id,omitempty"`
	Linked         *bool      `json:"linked,omitempty"`
	Filename       *string    `json:"filename,omitempty"`
	CreatedFrom    *time.Time `json:"created_from,omitempty"`
	CreatedTo      *time.Time `json:"created_to,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	var unlinked *bool
	if f.Linked != nil {
		v := !*f.Linked
		unlinked = &v
	}

	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("Language", f.Language).
		WhereEquals("DocumentTypeID", f.DocumentTypeID).
		WhereEquals("EngineID", f.EngineID).
		WhereEquals("ClaimID", f.ClaimID).
		WhereNull("ClaimID", unlinked).
		WhereContains("Filename", f.Filename).
		WhereRange("CreatedAt", f.CreatedFrom, f.CreatedTo)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Dates accept RFC 3339 timestamps or plain YYYY-MM-DD days.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		st := Status(s)
		f.Status = &st
	}

	if s := values.Get("language"); s != "" {
		lang := strings.ToLower(s)
		f.Language = &lang
	}

	f.DocumentTypeID = uuidParam(values, "document_type")
	f.EngineID = uuidParam(values, "engine")
	f.ClaimID = uuidParam(values, "claim")

	switch values.Get("linked") {
	case "true":
		v := true
		f.Linked = &v
	case "false":
		v := false
		f.Linked = &v
	}

	if s := values.Get("filename"); s != "" {
		f.Filename = &s
	}

	f.CreatedFrom = timeParam(values, "created_from", false)
	f.CreatedTo = timeParam(values, "created_to", true)

	return f
}

func uuidParam(values url.Values, key string) *uuid.UUID {
	s := values.Get(key)
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}

// timeParam parses an RFC 3339 timestamp or a day. A day used as an
// upper bound covers the whole day.
func timeParam(values url.Values, key string, upper bool) *time.Time {
	s := values.Get(key)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t
}

func scanDocument(s repository.Scanner) (Document, error) {
	var d Document
	err := s.Scan(
		&d.ID,
		&d.Filename,
		&d.ContentType,
		&d.SizeBytes,
		&d.PageCount,
		&d.StorageKey,
		&d.Status,
		&d.ErrorMessage,
		&d.DocumentTypeID,
		&d.ClassificationConfidence,
		&d.EngineID,
		&d.ClaimID,
		&d.Language,
		&d.ProcessingStartedAt,
		&d.CompletedAt,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.DocumentTypeCode,
		&d.EngineName,
	)
	return d, err
}
