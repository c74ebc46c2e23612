package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type claims struct {
	Rights []any `json:"rights"`
	jwt.RegisteredClaims
}

// JWT authenticates HMAC-signed bearer tokens.
type JWT struct {
	secret []byte
	issuer string
	names  map[string]int
}

// NewJWT creates a JWT authenticator. An empty issuer skips the iss check.
// names maps right names that may appear in the rights claim to their codes.
func NewJWT(secret, issuer string, names map[string]int) *JWT {
	return &JWT{
		secret: []byte(secret),
		issuer: issuer,
		names:  names,
	}
}

func (a *JWT) Authenticate(r *http.Request) (*Principal, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return a.Parse(raw)
}

// Parse validates a token string and returns its principal.
func (a *JWT) Parse(raw string) (*Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, ErrUnauthenticated
	}

	return &Principal{
		Subject: c.Subject,
		Rights:  resolveRights(c.Rights, a.names),
	}, nil
}

// Issue signs a token for subject holding rights. Used by operators to mint
// pipeline credentials and by tests.
func (a *JWT) Issue(subject string, rights []int, ttl time.Duration) (string, error) {
	raw := make([]any, len(rights))
	for i, r := range rights {
		raw[i] = r
	}

	now := time.Now()
	c := claims{
		Rights: raw,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.secret)
}
