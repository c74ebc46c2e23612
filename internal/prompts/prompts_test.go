package prompts_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/prompts"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

type mockSystem struct {
	listFn       func(ctx context.Context, page pagination.PageRequest, filters prompts.Filters) (*pagination.PageResult[prompts.Template], error)
	findFn       func(ctx context.Context, id uuid.UUID) (*prompts.Template, error)
	createFn     func(ctx context.Context, cmd prompts.CreateCommand) (*prompts.Template, error)
	activateFn   func(ctx context.Context, id uuid.UUID) (*prompts.Template, error)
	deactivateFn func(ctx context.Context, id uuid.UUID) (*prompts.Template, error)
	versionsFn   func(ctx context.Context, t prompts.Type, dt *uuid.UUID) ([]prompts.Template, error)
	resolveFn    func(ctx context.Context, t prompts.Type, dt *uuid.UUID) (*prompts.Resolution, error)
}

func (m *mockSystem) Handler() *prompts.Handler { return newTestHandler(m) }

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters prompts.Filters) (*pagination.PageResult[prompts.Template], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*prompts.Template, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Create(ctx context.Context, cmd prompts.CreateCommand) (*prompts.Template, error) {
	return m.createFn(ctx, cmd)
}

func (m *mockSystem) Activate(ctx context.Context, id uuid.UUID) (*prompts.Template, error) {
	return m.activateFn(ctx, id)
}

func (m *mockSystem) Deactivate(ctx context.Context, id uuid.UUID) (*prompts.Template, error) {
	return m.deactivateFn(ctx, id)
}

func (m *mockSystem) Versions(ctx context.Context, t prompts.Type, dt *uuid.UUID) ([]prompts.Template, error) {
	return m.versionsFn(ctx, t, dt)
}

func (m *mockSystem) Resolve(ctx context.Context, t prompts.Type, dt *uuid.UUID) (*prompts.Resolution, error) {
	return m.resolveFn(ctx, t, dt)
}

func newTestHandler(sys prompts.System) *prompts.Handler {
	return prompts.NewHandler(
		sys,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
	)
}

func setupMux(h *prompts.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		mux.HandleFunc(route.Method+" "+group.Prefix+route.Pattern, route.Handler)
	}
	return mux
}

func TestDefaults(t *testing.T) {
	for _, pt := range prompts.Types() {
		text, err := prompts.Default(pt)
		if err != nil {
			t.Fatalf("Default(%s): %v", pt, err)
		}
		if !strings.Contains(text, "JSON") {
			t.Errorf("Default(%s) does not ask for JSON", pt)
		}
	}

	if _, err := prompts.Default("summary"); !errors.Is(err, prompts.ErrInvalidType) {
		t.Errorf("Default(summary) error = %v, want ErrInvalidType", err)
	}
}

func TestKey(t *testing.T) {
	dt := uuid.MustParse("6f1c1e8a-2d7a-4a55-9a55-4b3e2f6d9c10")

	if got := prompts.Key(prompts.TypeExtraction, nil); got != "prompt_templates:extraction:global" {
		t.Errorf("global key = %q", got)
	}
	if got := prompts.Key(prompts.TypeExtraction, &dt); got != "prompt_templates:extraction:"+dt.String() {
		t.Errorf("scoped key = %q", got)
	}
	if prompts.Key(prompts.TypeClassification, nil) == prompts.Key(prompts.TypeExtraction, nil) {
		t.Error("keys for different prompt types must differ")
	}
}

func TestCreateCommandValidate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     prompts.CreateCommand
		wantErr bool
	}{
		{"valid", prompts.CreateCommand{PromptType: prompts.TypeExtraction, Content: "extract"}, false},
		{"unknown type", prompts.CreateCommand{PromptType: "summary", Content: "x"}, true},
		{"empty content", prompts.CreateCommand{PromptType: prompts.TypeClassification}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTypeUnmarshalRejectsUnknown(t *testing.T) {
	var cmd prompts.CreateCommand
	err := json.Unmarshal([]byte(`{"prompt_type":"summary","content":"x"}`), &cmd)
	if !errors.Is(err, prompts.ErrInvalidType) {
		t.Errorf("Unmarshal error = %v, want ErrInvalidType", err)
	}
}

func TestHandlerResolve(t *testing.T) {
	dt := uuid.New()

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantDT     *uuid.UUID
	}{
		{"global", "?prompt_type=extraction", http.StatusOK, nil},
		{"document type", "?prompt_type=extraction&document_type=" + dt.String(), http.StatusOK, &dt},
		{"unknown type", "?prompt_type=summary", http.StatusBadRequest, nil},
		{"bad document type", "?prompt_type=extraction&document_type=nope", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotDT *uuid.UUID
			sys := &mockSystem{
				resolveFn: func(_ context.Context, pt prompts.Type, d *uuid.UUID) (*prompts.Resolution, error) {
					gotDT = d
					return &prompts.Resolution{PromptType: pt, Content: "c", Source: prompts.SourceDefault}, nil
				},
			}
			mux := setupMux(newTestHandler(sys))

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", "/prompts/resolve"+tt.query, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if (gotDT == nil) != (tt.wantDT == nil) || (gotDT != nil && *gotDT != *tt.wantDT) {
				t.Errorf("document type = %v, want %v", gotDT, tt.wantDT)
			}

			var res prompts.Resolution
			if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if res.Source != prompts.SourceDefault {
				t.Errorf("source = %q", res.Source)
			}
		})
	}
}

func TestHandlerCreate(t *testing.T) {
	var captured prompts.CreateCommand
	sys := &mockSystem{
		createFn: func(_ context.Context, cmd prompts.CreateCommand) (*prompts.Template, error) {
			captured = cmd
			return &prompts.Template{ID: uuid.New(), PromptType: cmd.PromptType, Version: 3, Content: cmd.Content, IsActive: cmd.Activate}, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	body := `{"prompt_type":"classification","content":"classify","activate":true}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/prompts", bytes.NewBufferString(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if captured.PromptType != prompts.TypeClassification || !captured.Activate {
		t.Errorf("captured = %+v", captured)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/prompts", bytes.NewBufferString(`{"prompt_type":"summary"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d, want 400", rec.Code)
	}
}

func TestHandlerActivateNotFound(t *testing.T) {
	sys := &mockSystem{
		activateFn: func(context.Context, uuid.UUID) (*prompts.Template, error) {
			return nil, prompts.ErrNotFound
		},
	}
	mux := setupMux(newTestHandler(sys))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/prompts/"+uuid.NewString()+"/activate", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/prompts/nope/activate", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}
