package validation

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/internal/dispatch"
	"github.com/abekarar/openimis-claimslens/pkg/handlers"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
	"github.com/abekarar/openimis-claimslens/pkg/routes"
)

// Handler provides HTTP endpoints for validation runs, results, and findings.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "validation"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for validation endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/validation",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/run", Handler: h.Run, Right: core.RightRunValidation},
			{Method: "GET", Pattern: "/results", Handler: h.ListResults, Right: core.RightValidationResults},
			{Method: "GET", Pattern: "/results/{id}", Handler: h.FindResult, Right: core.RightValidationResults},
			{Method: "GET", Pattern: "/findings", Handler: h.ListFindings, Right: core.RightValidationResults},
			{Method: "POST", Pattern: "/findings/{id}/resolve", Handler: h.ResolveFinding, Right: core.RightRunValidation},
		},
	}
}

type queued struct {
	DocumentID      uuid.UUID `json:"document_id"`
	ValidationTypes []Type    `json:"validation_types"`
	Status          string    `json:"status"`
}

// Run executes validation passes. With async=true the passes are queued
// for a worker and the response is 202.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	var cmd RunCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, core.Invalid("body", "%v", err))
		return
	}
	if err := cmd.Validate(); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async {
		if err := h.sys.Enqueue(r.Context(), cmd); err != nil {
			handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
			return
		}
		handlers.RespondJSON(w, http.StatusAccepted, queued{
			DocumentID:      cmd.DocumentID,
			ValidationTypes: cmd.ValidationTypes,
			Status:          "queued",
		})
		return
	}

	results, err := h.sys.Run(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, results)
}

// ListResults returns a paginated list of validation results.
func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := ResultFiltersFromQuery(r.URL.Query())

	result, err := h.sys.ListResults(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

// FindResult returns a validation result with its findings.
func (h *Handler) FindResult(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	res, err := h.sys.FindResult(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, res)
}

// ListFindings returns a paginated list of findings.
func (h *Handler) ListFindings(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FindingFiltersFromQuery(r.URL.Query())

	result, err := h.sys.ListFindings(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

// ResolveFinding accepts, rejects, or defers a pending finding.
func (h *Handler) ResolveFinding(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd ResolveCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, core.Invalid("body", "%v", err))
		return
	}

	res, err := h.sys.ResolveFinding(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, res)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, core.Invalid("id", "not a uuid"))
		return uuid.Nil, false
	}
	return id, true
}

// JobHandler adapts sys to a validation queue consumer.
func JobHandler(sys System) func(context.Context, dispatch.ValidationJob) error {
	return func(ctx context.Context, job dispatch.ValidationJob) error {
		cmd := RunCommand{DocumentID: job.DocumentID}
		for _, t := range job.ValidationTypes {
			cmd.ValidationTypes = append(cmd.ValidationTypes, Type(t))
		}
		_, err := sys.Run(ctx, cmd)
		return err
	}
}
