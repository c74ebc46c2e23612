package engines_test

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

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/internal/engines"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

func testKey(b byte) *[32]byte {
	var k [32]byte
	for i := range k {
		k[i] = b
	}
	return &k
}

func TestSealer(t *testing.T) {
	s := engines.NewSealer(testKey(7))

	sealed, err := s.Seal("sk-live-123")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("sk-live-123")) {
		t.Fatal("sealed output contains plaintext")
	}

	got, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got != "sk-live-123" {
		t.Errorf("open = %q, want sk-live-123", got)
	}

	t.Run("wrong key", func(t *testing.T) {
		if _, err := engines.NewSealer(testKey(9)).Open(sealed); err == nil {
			t.Error("expected error opening with another key")
		}
	})

	t.Run("empty", func(t *testing.T) {
		sealed, err := s.Seal("")
		if err != nil || sealed != nil {
			t.Errorf("Seal(\"\") = %v, %v; want nil, nil", sealed, err)
		}
	})

	t.Run("nonce differs", func(t *testing.T) {
		again, _ := s.Seal("sk-live-123")
		if bytes.Equal(sealed, again) {
			t.Error("two seals of the same key produced identical output")
		}
	})
}

func TestCommandValidate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     engines.Command
		wantErr bool
	}{
		{
			name: "defaults filled",
			cmd:  engines.Command{Name: "gpt", Adapter: engines.AdapterOpenAICompatible, EndpointURL: "https://api.example"},
		},
		{
			name:    "unknown adapter",
			cmd:     engines.Command{Name: "x", Adapter: "tesseract", EndpointURL: "https://api.example"},
			wantErr: true,
		},
		{
			name:    "missing endpoint",
			cmd:     engines.Command{Name: "x", Adapter: engines.AdapterMistral},
			wantErr: true,
		},
		{
			name:    "bad deployment",
			cmd:     engines.Command{Name: "x", Adapter: engines.AdapterMistral, EndpointURL: "u", Deployment: "edge"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.cmd
			err := cmd.Validate()
			if tt.wantErr {
				if !errors.Is(err, core.ErrValidationInput) {
					t.Errorf("err = %v, want ErrValidationInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cmd.MaxTokens != 4096 || *cmd.Temperature != 0.1 || cmd.TimeoutSeconds != 120 {
				t.Errorf("defaults = %d/%v/%d", cmd.MaxTokens, *cmd.Temperature, cmd.TimeoutSeconds)
			}
			if cmd.Deployment != engines.DeploymentCloud {
				t.Errorf("deployment = %q, want cloud", cmd.Deployment)
			}
		})
	}
}

type mockSystem struct {
	findFn        func(ctx context.Context, id uuid.UUID) (*engines.Engine, error)
	credentialsFn func(ctx context.Context, id uuid.UUID) (*engines.Credentials, error)
}

func (m *mockSystem) Handler() *engines.Handler {
	return engines.NewHandler(m, slog.New(slog.NewTextHandler(io.Discard, nil)), pagination.Config{DefaultPageSize: 20, MaxPageSize: 100})
}

func (m *mockSystem) List(context.Context, pagination.PageRequest, engines.Filters) (*pagination.PageResult[engines.Engine], error) {
	return nil, errors.New("not implemented")
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*engines.Engine, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Create(context.Context, engines.Command) (*engines.Engine, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSystem) Update(context.Context, uuid.UUID, engines.Command) (*engines.Engine, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSystem) Delete(context.Context, uuid.UUID) error { return errors.New("not implemented") }

func (m *mockSystem) Active(context.Context) ([]engines.Engine, error) { return nil, nil }

func (m *mockSystem) Credentials(ctx context.Context, id uuid.UUID) (*engines.Credentials, error) {
	return m.credentialsFn(ctx, id)
}

func setupMux(h *engines.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		mux.HandleFunc(route.Method+" "+group.Prefix+route.Pattern, route.Handler)
	}
	return mux
}

func TestHandlerFindHidesKey(t *testing.T) {
	id := uuid.New()
	sys := &mockSystem{
		findFn: func(_ context.Context, _ uuid.UUID) (*engines.Engine, error) {
			return &engines.Engine{ID: id, Name: "mistral-ocr", HasAPIKey: true}, nil
		},
	}
	mux := setupMux(sys.Handler())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/engines/"+id.String(), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, `"api_key"`) {
		t.Errorf("body exposes api_key: %s", body)
	}
	if !strings.Contains(body, `"has_api_key":true`) {
		t.Errorf("body missing has_api_key: %s", body)
	}
}

func TestHandlerCredentials(t *testing.T) {
	sys := &mockSystem{
		credentialsFn: func(_ context.Context, id uuid.UUID) (*engines.Credentials, error) {
			return &engines.Credentials{EngineID: id, APIKey: "sk-1"}, nil
		},
	}
	mux := setupMux(sys.Handler())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/engines/"+uuid.NewString()+"/credentials", nil))

	var c engines.Credentials
	if err := json.NewDecoder(rec.Body).Decode(&c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.APIKey != "sk-1" {
		t.Errorf("api key = %q, want sk-1", c.APIKey)
	}
}

func TestHandlerNotFound(t *testing.T) {
	sys := &mockSystem{
		findFn: func(context.Context, uuid.UUID) (*engines.Engine, error) { return nil, engines.ErrNotFound },
	}
	mux := setupMux(sys.Handler())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/engines/"+uuid.NewString(), nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
