package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDC authenticates ID tokens issued by an OpenID Connect provider.
type OIDC struct {
	verifier *oidc.IDTokenVerifier
	names    map[string]int
}

// NewOIDC discovers the provider at issuer and verifies tokens for clientID.
func NewOIDC(ctx context.Context, issuer, clientID string, names map[string]int) (*OIDC, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider %s: %w", issuer, err)
	}

	return &OIDC{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		names:    names,
	}, nil
}

func (a *OIDC) Authenticate(r *http.Request) (*Principal, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, ErrUnauthenticated
	}

	token, err := a.verifier.Verify(r.Context(), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	var c struct {
		Rights []any `json:"rights"`
	}
	if err := token.Claims(&c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	return &Principal{
		Subject: token.Subject,
		Rights:  resolveRights(c.Rights, a.names),
	}, nil
}
