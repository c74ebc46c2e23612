package engines

import (
	"net/url"
	"strconv"

	"github.com/abekarar/openimis-claimslens/pkg/query"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "engine_configs", "e").
	Project("id", "ID").
	Project("name", "Name").
	Project("adapter", "Adapter").
	Project("endpoint_url", "EndpointURL").
	Project("model_name", "ModelName").
	Project("deployment_mode", "Deployment").
	Project("is_primary", "IsPrimary").
	Project("is_fallback", "IsFallback").
	Project("is_active", "IsActive").
	Project("max_tokens", "MaxTokens").
	Project("temperature", "Temperature").
	Project("timeout_seconds", "TimeoutSeconds").
	Project("api_key_sealed", "APIKey").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{Field: "Name"}

const returning = `RETURNING id, name, adapter, endpoint_url, model_name, deployment_mode,
	is_primary, is_fallback, is_active, max_tokens, temperature, timeout_seconds,
	api_key_sealed, created_at, updated_at`

// Filters contains optional filtering criteria for engine queries.
type Filters struct {
	Adapter    *string `json:"adapter,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
	IsPrimary  *bool   `json:"is_primary,omitempty"`
	IsFallback *bool   `json:"is_fallback,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Adapter", f.Adapter).
		WhereEquals("IsActive", f.IsActive).
		WhereEquals("IsPrimary", f.IsPrimary).
		WhereEquals("IsFallback", f.IsFallback)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters
	if a := values.Get("adapter"); a != "" {
		f.Adapter = &a
	}
	f.IsActive = boolParam(values, "is_active")
	f.IsPrimary = boolParam(values, "is_primary")
	f.IsFallback = boolParam(values, "is_fallback")
	return f
}

func boolParam(values url.Values, key string) *bool {
	raw := values.Get(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

type sealedEngine struct {
	Engine
	sealed []byte
}

func scanEngine(s repository.Scanner) (sealedEngine, error) {
	var e sealedEngine
	err := s.Scan(
		&e.ID,
		&e.Name,
		&e.Adapter,
		&e.EndpointURL,
		&e.ModelName,
		&e.Deployment,
		&e.IsPrimary,
		&e.IsFallback,
		&e.IsActive,
		&e.MaxTokens,
		&e.Temperature,
		&e.TimeoutSeconds,
		&e.sealed,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	e.HasAPIKey = len(e.sealed) > 0
	return e, err
}

func unseal(items []sealedEngine) []Engine {
	out := make([]Engine, len(items))
	for i, item := range items {
		out[i] = item.Engine
	}
	return out
}
