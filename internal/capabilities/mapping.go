package capabilities

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/pkg/query"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "capability_scores", "cs").
	Project("id", "ID").
	Project("engine_config_id", "EngineID").
	Project("language", "Language").
	Project("document_type_id", "DocumentTypeID").
	Project("accuracy_score", "AccuracyScore").
	Project("cost_per_page", "CostPerPage").
	Project("speed_score", "SpeedScore").
	Project("is_active", "IsActive").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Join("public", "engine_configs", "e", "JOIN", "cs.engine_config_id = e.id").
	Project("name", "EngineName")

var defaultSort = query.SortField{Field: "UpdatedAt", Descending: true}

// Filters contains optional filtering criteria for score queries.
type Filters struct {
	EngineID       *uuid.UUID `json:"engine_config_id,omitempty"`
	Language       *string    `json:"language,omitempty"`
	DocumentTypeID *uuid.UUID `json:"document_type_id,omitempty"`
	IsActive       *bool      `json:"is_active,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("EngineID", f.EngineID).
		WhereEquals("Language", f.Language).
		WhereEquals("DocumentTypeID", f.DocumentTypeID).
		WhereEquals("IsActive", f.IsActive)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters
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

func scanScore(s repository.Scanner) (Score, error) {
	var sc Score
	err := s.Scan(
		&sc.ID,
		&sc.EngineID,
		&sc.Language,
		&sc.DocumentTypeID,
		&sc.AccuracyScore,
		&sc.CostPerPage,
		&sc.SpeedScore,
		&sc.IsActive,
		&sc.CreatedAt,
		&sc.UpdatedAt,
		&sc.EngineName,
	)
	return sc, err
}
