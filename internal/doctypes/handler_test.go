package doctypes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/doctypes"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

type mockSystem struct {
	listFn   func(ctx context.Context, page pagination.PageRequest, filters doctypes.Filters) (*pagination.PageResult[doctypes.DocumentType], error)
	findFn   func(ctx context.Context, id uuid.UUID) (*doctypes.DocumentType, error)
	createFn func(ctx context.Context, cmd doctypes.Command) (*doctypes.DocumentType, error)
	updateFn func(ctx context.Context, id uuid.UUID, cmd doctypes.Command) (*doctypes.DocumentType, error)
	deleteFn func(ctx context.Context, id uuid.UUID) error
}

func (m *mockSystem) Handler() *doctypes.Handler { return newTestHandler(m) }

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters doctypes.Filters) (*pagination.PageResult[doctypes.DocumentType], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*doctypes.DocumentType, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Create(ctx context.Context, cmd doctypes.Command) (*doctypes.DocumentType, error) {
	return m.createFn(ctx, cmd)
}

func (m *mockSystem) Update(ctx context.Context, id uuid.UUID, cmd doctypes.Command) (*doctypes.DocumentType, error) {
	return m.updateFn(ctx, id, cmd)
}

func (m *mockSystem) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

func newTestHandler(sys doctypes.System) *doctypes.Handler {
	return doctypes.NewHandler(
		sys,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
	)
}

func setupMux(h *doctypes.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		mux.HandleFunc(route.Method+" "+group.Prefix+route.Pattern, route.Handler)
	}
	return mux
}

func TestHandlerList(t *testing.T) {
	var captured doctypes.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, _ pagination.PageRequest, f doctypes.Filters) (*pagination.PageResult[doctypes.DocumentType], error) {
			captured = f
			result := pagination.NewPageResult([]doctypes.DocumentType{{Code: "INVOICE"}}, 1, 1, 20)
			return &result, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/document-types?is_active=true", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if captured.IsActive == nil || !*captured.IsActive {
		t.Errorf("is_active filter = %v, want true", captured.IsActive)
	}
}

func TestHandlerCreate(t *testing.T) {
	sys := &mockSystem{
		createFn: func(_ context.Context, cmd doctypes.Command) (*doctypes.DocumentType, error) {
			if err := cmd.Validate(); err != nil {
				return nil, err
			}
			return &doctypes.DocumentType{ID: uuid.New(), Code: cmd.Code, Name: cmd.Name, IsActive: true}, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"valid", map[string]any{"code": " INVOICE ", "name": "Invoice"}, http.StatusCreated},
		{"missing code", map[string]any{"name": "Invoice"}, http.StatusBadRequest},
		{"missing name", map[string]any{"code": "INVOICE"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.body)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("POST", "/document-types", bytes.NewReader(body)))

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status != http.StatusCreated {
				return
			}
			var dt doctypes.DocumentType
			if err := json.NewDecoder(rec.Body).Decode(&dt); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if dt.Code != "INVOICE" {
				t.Errorf("code = %q, want trimmed INVOICE", dt.Code)
			}
		})
	}
}

func TestHandlerDelete(t *testing.T) {
	sys := &mockSystem{
		deleteFn: func(_ context.Context, _ uuid.UUID) error { return doctypes.ErrInUse },
	}
	mux := setupMux(newTestHandler(sys))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("DELETE", "/document-types/"+uuid.NewString(), nil))

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}
