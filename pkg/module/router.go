package module

import (
	"maps"
	"net/http"
	"slices"
	"strings"
)

// Router sends a request to the module owning its first path segment.
// Paths no module owns, such as the health probes, go to a plain ServeMux.
type Router struct {
	modules map[string]*Module
	native  *http.ServeMux
}

func NewRouter() *Router {
	return &Router{
		modules: map[string]*Module{},
		native:  http.NewServeMux(),
	}
}

// HandleNative registers a handler outside every module.
func (r *Router) HandleNative(pattern string, handler http.HandlerFunc) {
	r.native.HandleFunc(pattern, handler)
}

// Mount routes m's prefix to m, replacing any module already there.
func (r *Router) Mount(m *Module) {
	r.modules[m.prefix] = m
}

// Prefixes lists the mounted prefixes, sorted.
func (r *Router) Prefixes() []string {
	return slices.Sorted(maps.Keys(r.modules))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	req = withoutTrailingSlash(req)

	if m, ok := r.modules[prefixOf(req.URL.Path)]; ok {
		m.Serve(w, req)
		return
	}
	r.native.ServeHTTP(w, req)
}

// prefixOf returns "/seg" for any path under /seg.
func prefixOf(path string) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	return "/" + seg
}

func withoutTrailingSlash(req *http.Request) *http.Request {
	path := req.URL.Path
	if len(path) <= 1 || !strings.HasSuffix(path, "/") {
		return req
	}
	u := *req.URL
	u.Path = strings.TrimRight(path, "/")
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawPath = ""
	r := req.Clone(req.Context())
	r.URL = &u
	return r
}
