package routes_test

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/abekarar/openimis-claimslens/pkg/routes"
)

func ok(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func TestRegisterGuardsRights(t *testing.T) {
	var guarded []int
	guard := func(right int, next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			guarded = append(guarded, right)
			if r.Header.Get("X-Allow") == "" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next(w, r)
		}
	}

	group := routes.Group{
		Prefix: "/documents",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: ok, Right: 159001},
			{Method: "GET", Pattern: "/ping", Handler: ok},
		},
	}

	mux := http.NewServeMux()
	routes.Register(mux, guard, group)

	tests := []struct {
		path  string
		allow bool
		want  int
	}{
		{"/documents", false, http.StatusForbidden},
		{"/documents", true, http.StatusOK},
		{"/documents/ping", false, http.StatusOK},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if tt.allow {
			req.Header.Set("X-Allow", "1")
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s allow=%v: status %d, want %d", tt.path, tt.allow, rec.Code, tt.want)
		}
	}

	if !slices.Equal(guarded, []int{159001, 159001}) {
		t.Errorf("guard invoked with %v", guarded)
	}
}

func TestPatterns(t *testing.T) {
	groups := []routes.Group{{
		Prefix: "/validation",
		Routes: []routes.Route{{Method: "POST", Pattern: "/run", Handler: ok}},
		Children: []routes.Group{{
			Prefix: "/rules",
			Routes: []routes.Route{{Method: "GET", Pattern: "", Handler: ok}},
		}},
	}}

	got := routes.Patterns(groups...)
	want := []string{"POST /validation/run", "GET /validation/rules"}
	if !slices.Equal(got, want) {
		t.Errorf("Patterns = %v, want %v", got, want)
	}
}
