package capabilities

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

// Handler provides HTTP endpoints for the capability registry.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "capabilities"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for capability endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/capabilities",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, Right: core.RightCapabilityScores},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, Right: core.RightCapabilityScores},
			{Method: "POST", Pattern: "", Handler: h.Upsert, Right: core.RightManageCapabilityScores},
			{Method: "POST", Pattern: "/{id}/deactivate", Handler: h.Deactivate, Right: core.RightManageCapabilityScores},
		},
	}
}

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

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, core.Invalid("id", "not a uuid"))
		return
	}

	sc, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, sc)
}

// Upsert creates the active score for a tuple or replaces its values.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	var cmd UpsertCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, core.Invalid("body", "%v", err))
		return
	}

	sc, err := h.sys.Upsert(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, sc)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, core.Invalid("id", "not a uuid"))
		return
	}

	sc, err := h.sys.Deactivate(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, sc)
}
