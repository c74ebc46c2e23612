package doctypes

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/pkg/handlers"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
	"github.com/abekarar/openimis-claimslens/pkg/routes"
)

// Handler provides HTTP endpoints for document type operations.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "doctypes"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for document type endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/document-types",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, Right: core.RightDocumentTypes},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, Right: core.RightDocumentTypes},
			{Method: "POST", Pattern: "", Handler: h.Create, Right: core.RightManageDocumentTypes},
			{Method: "PUT", Pattern: "/{id}", Handler: h.Update, Right: core.RightManageDocumentTypes},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete, Right: core.RightManageDocumentTypes},
		},
	}
}

// List returns a paginated list of document types.
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

// Find returns a single document type.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, core.Invalid("id", "not a uuid"))
		return
	}

	dt, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, dt)
}

// Create registers a new document type.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, core.Invalid("body", "%v", err))
		return
	}

	dt, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusCreated, dt)
}

// Update replaces the fields of a document type.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, core.Invalid("id", "not a uuid"))
		return
	}

	var cmd Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, core.Invalid("body", "%v", err))
		return
	}

	dt, err := h.sys.Update(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, dt)
}

// Delete removes a document type that no document references.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, core.Invalid("id", "not a uuid"))
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
