// Package auth authenticates bearer tokens and checks permission codes
// before a route handler runs. It does not store or evaluate policy:
// the token issuer decides which rights a caller holds.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/abekarar/openimis-claimslens/pkg/handlers"
	"github.com/abekarar/openimis-claimslens/pkg/routes"
)

var (
	// ErrUnauthenticated indicates a missing, malformed, or expired token.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden indicates the caller lacks the route's right.
	ErrForbidden = errors.New("permission denied")
)

// Anonymous is the subject assigned when authentication is disabled.
const Anonymous = "anonymous"

// Principal is an authenticated caller.
type Principal struct {
	Subject string
	Rights  []int
	// All grants every right. Set only by AllowAll.
	All bool
}

// Has reports whether the principal holds right.
func (p *Principal) Has(right int) bool {
	return p.All || slices.Contains(p.Rights, right)
}

// Authenticator resolves the caller of a request.
type Authenticator interface {
	Authenticate(r *http.Request) (*Principal, error)
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by Guard, if any.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// Actor returns the subject of the request's principal, or "system" when
// the call did not pass through Guard.
func Actor(ctx context.Context) string {
	if p, ok := FromContext(ctx); ok && p.Subject != "" {
		return p.Subject
	}
	return "system"
}

// Guard returns a routes.Guard that authenticates each request and checks
// the route's right, answering 401 or 403 before the handler runs.
func Guard(authn Authenticator, logger *slog.Logger) routes.Guard {
	logger = logger.With("component", "auth")
	return func(right int, next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			p, err := authn.Authenticate(r)
			if err != nil {
				handlers.RespondError(w, logger, http.StatusUnauthorized, ErrUnauthenticated)
				return
			}
			if !p.Has(right) {
				logger.Warn("right missing", "subject", p.Subject, "right", right, "path", r.URL.Path)
				handlers.RespondError(w, logger, http.StatusForbidden, ErrForbidden)
				return
			}
			next(w, r.WithContext(WithPrincipal(r.Context(), p)))
		}
	}
}

// AllowAll authenticates every request as Anonymous with all rights.
type AllowAll struct{}

func (AllowAll) Authenticate(*http.Request) (*Principal, error) {
	return &Principal{Subject: Anonymous, All: true}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// resolveRights converts claim values (numbers, numeric strings, or right
// names known to names) to codes. Unknown names are dropped.
func resolveRights(raw []any, names map[string]int) []int {
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		switch r := v.(type) {
		case float64:
			out = append(out, int(r))
		case string:
			if n, err := strconv.Atoi(r); err == nil {
				out = append(out, n)
			} else if code, ok := names[r]; ok {
				out = append(out, code)
			}
		}
	}
	return out
}
