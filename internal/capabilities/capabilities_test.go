package capabilities_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/capabilities"
	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

func TestUpsertCommandValidate(t *testing.T) {
	engine := uuid.New()

	tests := []struct {
		name    string
		cmd     capabilities.UpsertCommand
		wantErr bool
	}{
		{"valid", capabilities.UpsertCommand{EngineID: engine, Language: " EN ", AccuracyScore: 90, CostPerPage: 0.02, SpeedScore: 80}, false},
		{"bounds inclusive", capabilities.UpsertCommand{EngineID: engine, Language: "fr", AccuracyScore: 100, SpeedScore: 0}, false},
		{"missing engine", capabilities.UpsertCommand{Language: "en"}, true},
		{"missing language", capabilities.UpsertCommand{EngineID: engine}, true},
		{"accuracy above range", capabilities.UpsertCommand{EngineID: engine, Language: "en", AccuracyScore: 101}, true},
		{"negative speed", capabilities.UpsertCommand{EngineID: engine, Language: "en", SpeedScore: -1}, true},
		{"negative cost", capabilities.UpsertCommand{EngineID: engine, Language: "en", CostPerPage: -0.01}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.cmd
			err := cmd.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, core.ErrValidationInput) {
				t.Errorf("err = %v, want ErrValidationInput", err)
			}
			if err == nil && cmd.Language != "en" && cmd.Language != "fr" {
				t.Errorf("language = %q, want normalized", cmd.Language)
			}
		})
	}
}

func TestTupleKey(t *testing.T) {
	engine := uuid.New()
	dt := uuid.New()

	if capabilities.TupleKey(engine, "en", nil) == capabilities.TupleKey(engine, "en", &dt) {
		t.Error("language-wide and type-specific tuples share a key")
	}
	if capabilities.TupleKey(engine, "en", &dt) != capabilities.TupleKey(engine, "en", &dt) {
		t.Error("tuple key is not stable")
	}
}

type mockSystem struct {
	upsertFn     func(ctx context.Context, cmd capabilities.UpsertCommand) (*capabilities.Score, error)
	deactivateFn func(ctx context.Context, id uuid.UUID) (*capabilities.Score, error)
}

func (m *mockSystem) Handler() *capabilities.Handler {
	return capabilities.NewHandler(m, slog.New(slog.NewTextHandler(io.Discard, nil)), pagination.Config{DefaultPageSize: 20, MaxPageSize: 100})
}

func (m *mockSystem) List(context.Context, pagination.PageRequest, capabilities.Filters) (*pagination.PageResult[capabilities.Score], error) {
	result := pagination.NewPageResult([]capabilities.Score{}, 0, 1, 20)
	return &result, nil
}

func (m *mockSystem) Find(context.Context, uuid.UUID) (*capabilities.Score, error) {
	return nil, capabilities.ErrNotFound
}

func (m *mockSystem) Upsert(ctx context.Context, cmd capabilities.UpsertCommand) (*capabilities.Score, error) {
	return m.upsertFn(ctx, cmd)
}

func (m *mockSystem) Deactivate(ctx context.Context, id uuid.UUID) (*capabilities.Score, error) {
	return m.deactivateFn(ctx, id)
}

func (m *mockSystem) Active(context.Context, string, *uuid.UUID) ([]capabilities.Score, error) {
	return nil, nil
}

func setupMux(h *capabilities.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		mux.HandleFunc(route.Method+" "+group.Prefix+route.Pattern, route.Handler)
	}
	return mux
}

func TestHandlerUpsert(t *testing.T) {
	sys := &mockSystem{
		upsertFn: func(_ context.Context, cmd capabilities.UpsertCommand) (*capabilities.Score, error) {
			if err := cmd.Validate(); err != nil {
				return nil, err
			}
			return &capabilities.Score{ID: uuid.New(), EngineID: cmd.EngineID, Language: cmd.Language, AccuracyScore: cmd.AccuracyScore, IsActive: true}, nil
		},
	}
	mux := setupMux(sys.Handler())

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"valid", map[string]any{"engine_config_id": uuid.NewString(), "language": "en", "accuracy_score": 90}, http.StatusOK},
		{"out of range", map[string]any{"engine_config_id": uuid.NewString(), "language": "en", "accuracy_score": 150}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.body)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("POST", "/capabilities", bytes.NewReader(body)))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestHandlerDeactivate(t *testing.T) {
	id := uuid.New()
	sys := &mockSystem{
		deactivateFn: func(_ context.Context, got uuid.UUID) (*capabilities.Score, error) {
			if got != id {
				return nil, capabilities.ErrNotFound
			}
			return &capabilities.Score{ID: id, IsActive: false}, nil
		},
	}
	mux := setupMux(sys.Handler())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/capabilities/"+id.String()+"/deactivate", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/capabilities/"+uuid.NewString()+"/deactivate", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
