package audit

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/pkg/handlers"
	"github.com/abekarar/openimis-claimslens/pkg/routes"
)

var errInvalidID = errors.New("invalid document id")

// Handler provides HTTP endpoints for reading a document's audit trail.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler for the given system.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "audit"),
	}
}

// Routes returns the audit endpoints, nested under /documents.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/documents",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}/audit", Handler: h.List, Right: core.RightDocuments},
			{Method: "GET", Pattern: "/{id}/history", Handler: h.History, Right: core.RightDocuments},
		},
	}
}

// List returns every audit entry for a document in chronological order.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidID)
		return
	}

	entries, err := h.sys.List(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, entries)
}

// History returns the document's status transitions.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidID)
		return
	}

	entries, err := h.sys.List(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	history := History(entries)
	if history == nil {
		history = []Transition{}
	}
	handlers.RespondJSON(w, http.StatusOK, history)
}
