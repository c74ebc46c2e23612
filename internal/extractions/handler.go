package extractions

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/pkg/handlers"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
	"github.com/abekarar/openimis-claimslens/pkg/routes"
)

// Handler provides HTTP endpoints for extraction results and review.
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
		logger:     logger.With("handler", "extractions"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for extraction endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/extractions",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, Right: core.RightExtractionResults},
			{Method: "GET", Pattern: "/{documentId}", Handler: h.FindByDocument, Right: core.RightExtractionResults},
			{Method: "POST", Pattern: "/{documentId}", Handler: h.Ingest, Right: core.RightProcess},
			{Method: "POST", Pattern: "/{documentId}/approve", Handler: h.Approve, Right: core.RightReviewExtraction},
			{Method: "POST", Pattern: "/{documentId}/reject", Handler: h.Reject, Right: core.RightReviewExtraction},
		},
	}
}

// List returns a paginated list of extraction results.
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

// FindByDocument returns the extraction result of a document.
func (h *Handler) FindByDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	x, err := h.sys.FindByDocument(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, x)
}

// Ingest stores an engine result reported by the extraction pipeline.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	var cmd IngestCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, core.Invalid("body", "%v", err))
		return
	}

	x, err := h.sys.Ingest(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, x)
}

// Approve completes a document awaiting review. The body is optional.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	var cmd ApproveCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil && !errors.Is(err, io.EOF) {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, core.Invalid("body", "%v", err))
		return
	}

	x, err := h.sys.ApproveReview(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, x)
}

// Reject fails a document awaiting review or returns it for reprocessing.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	var cmd RejectCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, core.Invalid("body", "%v", err))
		return
	}

	x, err := h.sys.RejectReview(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, x)
}

func (h *Handler) documentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("documentId"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, core.Invalid("documentId", "not a uuid"))
		return uuid.Nil, false
	}
	return id, true
}
