package prompts

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/pkg/handlers"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
	"github.com/abekarar/openimis-claimslens/pkg/routes"
)

// Handler provides HTTP endpoints for prompt template operations.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "prompts"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for prompt template endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/prompts",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, Right: core.RightPromptTemplates},
			{Method: "GET", Pattern: "/types", Handler: h.Types, Right: core.RightPromptTemplates},
			{Method: "GET", Pattern: "/versions", Handler: h.Versions, Right: core.RightPromptTemplates},
			{Method: "GET", Pattern: "/resolve", Handler: h.Resolve, Right: core.RightPromptTemplates},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, Right: core.RightPromptTemplates},
			{Method: "POST", Pattern: "", Handler: h.Create, Right: core.RightManagePromptTemplates},
			{Method: "POST", Pattern: "/{id}/activate", Handler: h.Activate, Right: core.RightManagePromptTemplates},
			{Method: "POST", Pattern: "/{id}/deactivate", Handler: h.Deactivate, Right: core.RightManagePromptTemplates},
		},
	}
}

// List returns a paginated list of templates with optional query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Types returns the valid prompt types.
func (h *Handler) Types(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, Types())
}

// Versions returns the version history of a scope, newest first.
func (h *Handler) Versions(w http.ResponseWriter, r *http.Request) {
	t, dt, err := scope(r.URL.Query())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	items, err := h.sys.Versions(r.Context(), t, dt)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, items)
}

// Resolve returns the effective prompt content for a scope.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	t, dt, err := scope(r.URL.Query())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	res, err := h.sys.Resolve(r.Context(), t, dt)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, res)
}

// Find returns a single template by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, core.Invalid("id", "not a uuid"))
		return
	}

	t, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, t)
}

// Create stores a new version for the scope in the JSON body.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd CreateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, core.Invalid("body", "%v", err))
		return
	}

	t, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, t)
}

// Activate makes a version the only active one for its scope.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, core.Invalid("id", "not a uuid"))
		return
	}

	t, err := h.sys.Activate(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, t)
}

// Deactivate clears the active flag on a version, letting resolution
// fall through to the next scope.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, core.Invalid("id", "not a uuid"))
		return
	}

	t, err := h.sys.Deactivate(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, t)
}

func scope(values url.Values) (Type, *uuid.UUID, error) {
	t, err := ParseType(values.Get("prompt_type"))
	if err != nil {
		return "", nil, err
	}

	s := values.Get("document_type")
	if s == "" {
		return t, nil, nil
	}

	id, err := uuid.Parse(s)
	if err != nil {
		return "", nil, core.Invalid("document_type", "not a uuid")
	}
	return t, &id, nil
}
