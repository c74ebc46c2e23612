package module_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abekarar/openimis-claimslens/pkg/module"
)

func TestNewValidatesPrefix(t *testing.T) {
	for _, prefix := range []string{"", "api", "/api/v1"} {
		if _, err := module.New(prefix, http.NewServeMux()); err == nil {
			t.Errorf("New(%q) returned nil error", prefix)
		}
	}
}

func TestRouterDispatch(t *testing.T) {
	inner := http.NewServeMux()
	inner.HandleFunc("GET /documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("doc:" + r.PathValue("id")))
	})
	inner.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("root"))
	})

	api, err := module.New("/api", inner)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	api.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Module", "api")
			next.ServeHTTP(w, r)
		})
	})

	router := module.NewRouter()
	router.Mount(api)
	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	tests := []struct {
		path       string
		wantBody   string
		wantModule string
	}{
		{"/api/documents/42", "doc:42", "api"},
		{"/api/documents/42/", "doc:42", "api"},
		{"/api", "root", "api"},
		{"/healthz", "ok", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if got := rec.Body.String(); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
			if got := rec.Header().Get("X-Module"); got != tt.wantModule {
				t.Errorf("X-Module = %q, want %q", got, tt.wantModule)
			}
		})
	}

	if got := router.Prefixes(); len(got) != 1 || got[0] != "/api" {
		t.Errorf("Prefixes = %v", got)
	}
}
