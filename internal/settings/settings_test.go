package settings_test

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

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/internal/settings"
)

func ptr[T any](v T) *T { return &v }

func TestOutcome(t *testing.T) {
	s := settings.Defaults()

	tests := []struct {
		confidence float64
		want       settings.Outcome
	}{
		{0.95, settings.OutcomeComplete},
		{0.90, settings.OutcomeComplete},
		{0.75, settings.OutcomeReview},
		{0.60, settings.OutcomeReview},
		{0.59, settings.OutcomeFail},
		{0, settings.OutcomeFail},
	}

	for _, tt := range tests {
		if got := s.Outcome(tt.confidence); got != tt.want {
			t.Errorf("Outcome(%v) = %s, want %s", tt.confidence, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     settings.UpdateCommand
		wantErr bool
	}{
		{"defaults", settings.UpdateCommand{}, false},
		{"review above auto", settings.UpdateCommand{ReviewThreshold: ptr(0.95)}, true},
		{"auto above one", settings.UpdateCommand{AutoApproveThreshold: ptr(1.2)}, true},
		{"negative tolerance", settings.UpdateCommand{NumericTolerance: ptr(-0.1)}, true},
		{"empty date formats", settings.UpdateCommand{DateFormats: []string{}}, true},
		{"equal thresholds", settings.UpdateCommand{ReviewThreshold: ptr(0.9)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := settings.Defaults().Apply(tt.cmd).Validate()
			if tt.wantErr {
				if !errors.Is(err, core.ErrValidationInput) {
					t.Errorf("err = %v, want ErrValidationInput", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

type mockSystem struct {
	getFn    func(ctx context.Context) (*settings.Settings, error)
	updateFn func(ctx context.Context, cmd settings.UpdateCommand) (*settings.Settings, error)
}

func (m *mockSystem) Handler() *settings.Handler {
	return settings.NewHandler(m, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (m *mockSystem) Get(ctx context.Context) (*settings.Settings, error) {
	return m.getFn(ctx)
}

func (m *mockSystem) Update(ctx context.Context, cmd settings.UpdateCommand) (*settings.Settings, error) {
	return m.updateFn(ctx, cmd)
}

func setupMux(h *settings.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		mux.HandleFunc(route.Method+" "+group.Prefix+route.Pattern, route.Handler)
	}
	return mux
}

func TestHandlerUpdate(t *testing.T) {
	sys := &mockSystem{
		updateFn: func(_ context.Context, cmd settings.UpdateCommand) (*settings.Settings, error) {
			next := settings.Defaults().Apply(cmd)
			if err := next.Validate(); err != nil {
				return nil, err
			}
			return &next, nil
		},
	}
	mux := setupMux(sys.Handler())

	t.Run("applies partial update", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"review_threshold": 0.5})
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("PUT", "/settings", bytes.NewReader(body)))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var got settings.Settings
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.ReviewThreshold != 0.5 || got.AutoApproveThreshold != 0.9 {
			t.Errorf("thresholds = %v/%v, want 0.5/0.9", got.ReviewThreshold, got.AutoApproveThreshold)
		}
	})

	t.Run("rejects inverted thresholds", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"review_threshold": 0.99})
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("PUT", "/settings", bytes.NewReader(body)))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}
