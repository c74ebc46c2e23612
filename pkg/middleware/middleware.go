// Package middleware provides the HTTP middleware stack applied to modules.
package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/abekarar/openimis-claimslens/pkg/handlers"
)

// Func wraps a handler.
type Func = func(http.Handler) http.Handler

// System manages an ordered stack of HTTP middleware. The first Func
// added is the outermost.
type System interface {
	Use(mw Func)
	Apply(handler http.Handler) http.Handler
}

type stack []Func

// New creates an empty middleware System.
func New() System {
	return &stack{}
}

func (s *stack) Use(fn Func) {
	*s = append(*s, fn)
}

func (s *stack) Apply(handler http.Handler) http.Handler {
	for i := len(*s) - 1; i >= 0; i-- {
		handler = (*s)[i](handler)
	}
	return handler
}

// Recover converts a handler panic into a 500 JSON error and logs the
// stack. http.ErrAbortHandler is re-raised so net/http can abort the
// connection as requested.
func Recover(logger *slog.Logger) Func {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.Error(
					"handler panic",
					"method", r.Method,
					"uri", r.URL.RequestURI(),
					"panic", v,
					"stack", string(debug.Stack()),
				)
				handlers.RespondJSON(w, http.StatusInternalServerError, handlers.ErrorResponse{
					Error: fmt.Sprintf("internal error: %v", v),
					Kind:  "internal",
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
