package extractions_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/internal/extractions"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

func ptr[T any](v T) *T { return &v }

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		cmd       extractions.IngestCommand
		wantData  map[string]any
		wantAgg   float64
		wantField string
	}{
		{
			name: "fields form",
			cmd: extractions.IngestCommand{
				Fields: map[string]extractions.FieldValue{
					"chf_id":    {Value: "010000001", Confidence: 0.9},
					"last_name": {Value: "Doe", Confidence: 0.7},
				},
			},
			wantData: map[string]any{"chf_id": "010000001", "last_name": "Doe"},
			wantAgg:  0.8,
		},
		{
			name: "structured form with aggregate",
			cmd: extractions.IngestCommand{
				StructuredData:      map[string]any{"chf_id": "010000001"},
				FieldConfidences:    map[string]float64{"chf_id": 0.5},
				AggregateConfidence: ptr(0.95),
			},
			wantData: map[string]any{"chf_id": "010000001"},
			wantAgg:  0.95,
		},
		{
			name: "fenced raw response",
			cmd: extractions.IngestCommand{
				RawResponse: "```json\n{\"fields\": {\"icd_code\": {\"value\": \"A09\", \"confidence\": 0.6}}}\n```",
			},
			wantData: map[string]any{"icd_code": "A09"},
			wantAgg:  0.6,
		},
		{
			name: "confidence without value",
			cmd: extractions.IngestCommand{
				StructuredData:   map[string]any{"chf_id": "1"},
				FieldConfidences: map[string]float64{"chf_id": 0.9, "dob": 0.9},
			},
			wantField: "field_confidences",
		},
		{
			name: "confidence out of range",
			cmd: extractions.IngestCommand{
				Fields: map[string]extractions.FieldValue{"chf_id": {Value: "1", Confidence: 1.2}},
			},
			wantField: "field_confidences",
		},
		{
			name:      "nothing to ingest",
			cmd:       extractions.IngestCommand{RawResponse: map[string]any{"x": 1}},
			wantField: "fields",
		},
		{
			name: "no confidences and no aggregate",
			cmd: extractions.IngestCommand{
				StructuredData: map[string]any{"chf_id": "1"},
			},
			wantField: "aggregate_confidence",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Normalize()

			if tt.wantField != "" {
				var invalid *core.ValidationInputError
				if !errors.As(err, &invalid) {
					t.Fatalf("err = %v, want ValidationInputError", err)
				}
				if invalid.Field != tt.wantField {
					t.Errorf("field = %q, want %q", invalid.Field, tt.wantField)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantData, got.StructuredData); diff != "" {
				t.Errorf("structured data (-want +got):\n%s", diff)
			}
			if d := got.AggregateConfidence - tt.wantAgg; d > 1e-9 || d < -1e-9 {
				t.Errorf("aggregate = %v, want %v", got.AggregateConfidence, tt.wantAgg)
			}
		})
	}
}

func TestApproveApply(t *testing.T) {
	data := map[string]any{"chf_id": "0100", "last_name": "Do"}
	conf := map[string]float64{"chf_id": 0.9, "last_name": 0.4}

	cmd := extractions.ApproveCommand{Corrections: map[string]any{"last_name": "Doe", "dob": "1980-01-02"}}
	names := cmd.Apply(data, conf)

	if diff := cmp.Diff([]string{"dob", "last_name"}, names); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	if data["last_name"] != "Doe" || conf["last_name"] != 1.0 || conf["dob"] != 1.0 {
		t.Errorf("corrections not applied: %v %v", data, conf)
	}
	if conf["chf_id"] != 0.9 {
		t.Errorf("untouched confidence changed: %v", conf["chf_id"])
	}
}

type mockSystem struct {
	listFn    func(ctx context.Context, page pagination.PageRequest, filters extractions.Filters) (*pagination.PageResult[extractions.Result], error)
	findFn    func(ctx context.Context, documentID uuid.UUID) (*extractions.Result, error)
	ingestFn  func(ctx context.Context, documentID uuid.UUID, cmd extractions.IngestCommand) (*extractions.Result, error)
	approveFn func(ctx context.Context, documentID uuid.UUID, cmd extractions.ApproveCommand) (*extractions.Result, error)
	rejectFn  func(ctx context.Context, documentID uuid.UUID, cmd extractions.RejectCommand) (*extractions.Result, error)
}

func (m *mockSystem) Handler() *extractions.Handler { return newTestHandler(m) }

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters extractions.Filters) (*pagination.PageResult[extractions.Result], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) FindByDocument(ctx context.Context, documentID uuid.UUID) (*extractions.Result, error) {
	return m.findFn(ctx, documentID)
}

func (m *mockSystem) Ingest(ctx context.Context, documentID uuid.UUID, cmd extractions.IngestCommand) (*extractions.Result, error) {
	return m.ingestFn(ctx, documentID, cmd)
}

func (m *mockSystem) ApproveReview(ctx context.Context, documentID uuid.UUID, cmd extractions.ApproveCommand) (*extractions.Result, error) {
	return m.approveFn(ctx, documentID, cmd)
}

func (m *mockSystem) RejectReview(ctx context.Context, documentID uuid.UUID, cmd extractions.RejectCommand) (*extractions.Result, error) {
	return m.rejectFn(ctx, documentID, cmd)
}

func newTestHandler(sys extractions.System) *extractions.Handler {
	return extractions.NewHandler(
		sys,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
	)
}

func setupMux(h *extractions.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		mux.HandleFunc(route.Method+" "+group.Prefix+route.Pattern, route.Handler)
	}
	return mux
}

func TestHandlerIngest(t *testing.T) {
	docID := uuid.New()

	tests := []struct {
		name       string
		path       string
		body       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{
			name:       "created",
			path:       "/extractions/" + docID.String(),
			body:       `{"fields": {"chf_id": {"value": "1", "confidence": 0.95}}}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "bad document id",
			path:       "/extractions/nope",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "validation_input",
		},
		{
			name:       "malformed body",
			path:       "/extractions/" + docID.String(),
			body:       `{`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "validation_input",
		},
		{
			name:       "terminal document",
			path:       "/extractions/" + docID.String(),
			body:       `{"aggregate_confidence": 0.9, "structured_data": {}}`,
			err:        core.Illegal("document", "completed", "ingest extraction"),
			wantStatus: http.StatusConflict,
			wantKind:   "illegal_transition",
		},
		{
			name:       "document missing",
			path:       "/extractions/" + docID.String(),
			body:       `{"aggregate_confidence": 0.9, "structured_data": {}}`,
			err:        extractions.ErrNotFound,
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				ingestFn: func(_ context.Context, id uuid.UUID, cmd extractions.IngestCommand) (*extractions.Result, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					if id != docID {
						t.Errorf("document id = %s, want %s", id, docID)
					}
					return &extractions.Result{DocumentID: id, AggregateConfidence: cmd.Fields["chf_id"].Confidence}, nil
				},
			}

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			setupMux(newTestHandler(sys)).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.wantKind != "" && !strings.Contains(rec.Body.String(), `"kind":"`+tt.wantKind+`"`) {
				t.Errorf("body = %s, want kind %s", rec.Body, tt.wantKind)
			}
		})
	}
}

func TestHandlerApproveEmptyBody(t *testing.T) {
	docID := uuid.New()
	called := false

	sys := &mockSystem{
		approveFn: func(_ context.Context, id uuid.UUID, cmd extractions.ApproveCommand) (*extractions.Result, error) {
			called = true
			if len(cmd.Corrections) != 0 {
				t.Errorf("corrections = %v, want none", cmd.Corrections)
			}
			return &extractions.Result{DocumentID: id}, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/extractions/"+docID.String()+"/approve", http.NoBody)
	setupMux(newTestHandler(sys)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if !called {
		t.Error("approve not called")
	}
}

func TestHandlerReject(t *testing.T) {
	docID := uuid.New()

	sys := &mockSystem{
		rejectFn: func(_ context.Context, id uuid.UUID, cmd extractions.RejectCommand) (*extractions.Result, error) {
			if !cmd.Reprocess || cmd.Reason != "blurry scan" {
				t.Errorf("cmd = %+v", cmd)
			}
			return &extractions.Result{DocumentID: id}, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(
		http.MethodPost,
		"/extractions/"+docID.String()+"/reject",
		strings.NewReader(`{"reason": "blurry scan", "reprocess": true}`),
	)
	setupMux(newTestHandler(sys)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
}

func TestFiltersFromQuery(t *testing.T) {
	id := uuid.New()
	values := map[string][]string{
		"document":       {id.String()},
		"reviewed":       {"false"},
		"min_confidence": {"0.6"},
		"engine":         {"not-a-uuid"},
	}

	f := extractions.FiltersFromQuery(values)

	if f.DocumentID == nil || *f.DocumentID != id {
		t.Errorf("DocumentID = %v, want %s", f.DocumentID, id)
	}
	if f.Reviewed == nil || *f.Reviewed {
		t.Errorf("Reviewed = %v, want false", f.Reviewed)
	}
	if f.MinConfidence == nil || *f.MinConfidence != 0.6 {
		t.Errorf("MinConfidence = %v", f.MinConfidence)
	}
	if f.EngineID != nil {
		t.Errorf("EngineID = %v, want nil", f.EngineID)
	}
}
