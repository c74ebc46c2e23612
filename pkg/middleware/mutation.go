package middleware

import (
	"context"
	"net/http"
)

// MutationHeader carries the client-supplied identifier of a state-changing request.
const MutationHeader = "X-Client-Mutation-Id"

type mutationKey struct{}

// MutationID echoes the client mutation identifier on the response and stores
// it on the request context for audit records.
func MutationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(MutationHeader)
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set(MutationHeader, id)
		next.ServeHTTP(w, r.WithContext(WithMutationID(r.Context(), id)))
	})
}

// WithMutationID returns a context carrying the mutation identifier.
func WithMutationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, mutationKey{}, id)
}

// MutationIDFrom returns the mutation identifier on ctx, or "".
func MutationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(mutationKey{}).(string)
	return id
}
