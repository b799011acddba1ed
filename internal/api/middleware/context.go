package middleware

import (
	"context"
	"net/http"
	"slices"

	"github.com/google/uuid"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the API key a request authenticated with.
type Principal struct {
	KeyID     uuid.UUID
	CompanyID uuid.UUID
	KeyPrefix string
	Scopes    []string
}

// Can reports whether the key carries scope. Admin keys can do anything.
func (p *Principal) Can(scope string) bool {
	return slices.Contains(p.Scopes, scope) || slices.Contains(p.Scopes, ScopeAdmin)
}

// WithPrincipal stores p in ctx. Used by Authenticate and by tests that
// bypass it.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal returns the authenticated key, if any.
func GetPrincipal(r *http.Request) (*Principal, bool) {
	p, ok := r.Context().Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// GetCompanyID returns the company every query of the request is scoped to.
func GetCompanyID(r *http.Request) (uuid.UUID, bool) {
	p, ok := GetPrincipal(r)
	if !ok {
		return uuid.Nil, false
	}
	return p.CompanyID, true
}

func getKeyPrefix(r *http.Request) (string, bool) {
	p, ok := GetPrincipal(r)
	if !ok {
		return "", false
	}
	return p.KeyPrefix, true
}
