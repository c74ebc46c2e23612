package proposals_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/internal/proposals"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

func TestCreateFromFindingRejects(t *testing.T) {
	target := uuid.NewString()

	tests := []struct {
		name      string
		finding   proposals.FromFinding
		wantField string
	}{
		{
			name:      "not an update proposal",
			finding:   proposals.FromFinding{FindingType: "warning", Field: "phone"},
			wantField: "finding_type",
		},
		{
			name: "unknown model",
			finding: proposals.FromFinding{
				FindingType: "update_proposal",
				Field:       "phone",
				Details:     map[string]any{"target_model": "claim", "target_uuid": target},
			},
			wantField: "target_model",
		},
		{
			name: "bad target id",
			finding: proposals.FromFinding{
				FindingType: "update_proposal",
				Field:       "phone",
				Details:     map[string]any{"target_model": "insuree", "target_uuid": "x"},
			},
			wantField: "target_uuid",
		},
		{
			name: "no field",
			finding: proposals.FromFinding{
				FindingType: "update_proposal",
				Details:     map[string]any{"target_model": "insuree", "target_uuid": target},
			},
			wantField: "field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := proposals.CreateFromFinding(context.Background(), nil, tt.finding)

			var invalid *core.ValidationInputError
			if !errors.As(err, &invalid) {
				t.Fatalf("err = %v, want ValidationInputError", err)
			}
			if invalid.Field != tt.wantField {
				t.Errorf("field = %q, want %q", invalid.Field, tt.wantField)
			}
		})
	}
}

func TestReviewCommandValidate(t *testing.T) {
	for _, s := range []proposals.Status{proposals.StatusApproved, proposals.StatusRejected} {
		if err := (proposals.ReviewCommand{Status: s}).Validate(); err != nil {
			t.Errorf("%s: unexpected error %v", s, err)
		}
	}
	for _, s := range []proposals.Status{proposals.StatusApplied, proposals.StatusProposed, ""} {
		if err := (proposals.ReviewCommand{Status: s}).Validate(); !errors.Is(err, core.ErrValidationInput) {
			t.Errorf("%q: err = %v, want invalid", s, err)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	tests := map[proposals.Status]bool{
		proposals.StatusProposed: false,
		proposals.StatusApproved: false,
		proposals.StatusApplied:  true,
		proposals.StatusRejected: true,
	}
	for s, want := range tests {
		if got := s.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, got, want)
		}
	}
}

type mockSystem struct {
	reviewFn func(ctx context.Context, id uuid.UUID, cmd proposals.ReviewCommand) (*proposals.Proposal, error)
	applyFn  func(ctx context.Context, id uuid.UUID) (*proposals.Proposal, error)
}

func (m *mockSystem) Handler() *proposals.Handler { return newTestHandler(m) }

func (m *mockSystem) List(context.Context, pagination.PageRequest, proposals.Filters) (*pagination.PageResult[proposals.Proposal], error) {
	return nil, errors.New("not implemented")
}

func (m *mockSystem) Find(context.Context, uuid.UUID) (*proposals.Proposal, error) {
	return nil, proposals.ErrNotFound
}

func (m *mockSystem) Review(ctx context.Context, id uuid.UUID, cmd proposals.ReviewCommand) (*proposals.Proposal, error) {
	return m.reviewFn(ctx, id, cmd)
}

func (m *mockSystem) Apply(ctx context.Context, id uuid.UUID) (*proposals.Proposal, error) {
	return m.applyFn(ctx, id)
}

func newTestHandler(sys proposals.System) *proposals.Handler {
	return proposals.NewHandler(
		sys,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
	)
}

func setupMux(h *proposals.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		mux.HandleFunc(route.Method+" "+group.Prefix+route.Pattern, route.Handler)
	}
	return mux
}

func TestHandlerApply(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{name: "applied", wantStatus: http.StatusOK},
		{
			name:       "not approved",
			err:        core.Illegal("proposal", "proposed", "apply"),
			wantStatus: http.StatusConflict,
			wantKind:   "illegal_transition",
		},
		{
			name:       "registry write failed",
			err:        core.External("registry", errors.New("connection refused")),
			wantStatus: http.StatusBadGateway,
			wantKind:   "external_call_failure",
		},
		{
			name:       "registry write timed out",
			err:        core.External("registry", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantKind:   "external_call_failure",
		},
		{
			name:       "held by another apply",
			err:        core.Conflict("proposal", uuid.New()),
			wantStatus: http.StatusConflict,
			wantKind:   "conflict",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				applyFn: func(_ context.Context, id uuid.UUID) (*proposals.Proposal, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &proposals.Proposal{ID: id, Status: proposals.StatusApplied}, nil
				},
			}

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/proposals/"+uuid.NewString()+"/apply", nil)
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

func TestHandlerReview(t *testing.T) {
	sys := &mockSystem{
		reviewFn: func(_ context.Context, id uuid.UUID, cmd proposals.ReviewCommand) (*proposals.Proposal, error) {
			if cmd.Status != proposals.StatusRejected {
				t.Errorf("status = %s, want rejected", cmd.Status)
			}
			return &proposals.Proposal{ID: id, Status: cmd.Status}, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/proposals/"+uuid.NewString()+"/review", strings.NewReader(`{"status":"rejected"}`))
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/proposals/"+uuid.NewString(), nil)
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("find status = %d, want 404", rec.Code)
	}
}
