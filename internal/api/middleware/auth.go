package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rentdesk/rentdesk/internal/api/response"
	"github.com/rentdesk/rentdesk/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const (
	keyPrefixLen = 8
	keyScheme    = "rd_"
)

const (
	ScopeRead  = "read"
	ScopeWrite = "write"
	ScopeAdmin = "admin"
)

// Auth provides authentication and scope-checking middleware.
type Auth struct {
	store store.APIKeyStore
}

// NewAuth creates a new Auth middleware.
func NewAuth(s store.APIKeyStore) *Auth {
	return &Auth{store: s}
}

// Authenticate validates the Bearer token, looks up the API key by its
// prefix and stores the matching Principal in the request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := extractBearerToken(r)
		if rawKey == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		if len(rawKey) < keyPrefixLen || !strings.HasPrefix(rawKey, keyScheme) {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid API key format", nil)
			return
		}

		prefix := rawKey[:keyPrefixLen]

		keys, err := a.store.GetAPIKeyByPrefix(r.Context(), prefix)
		if err != nil {
			slog.Error("api key lookup failed", "error", err, "key_prefix", prefix)
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate API key", nil)
			return
		}

		// Find matching key by bcrypt comparison
		var matched bool
		for _, key := range keys {
			if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(rawKey)) == nil {
				r = r.WithContext(WithPrincipal(r.Context(), &Principal{
					KeyID:     key.ID,
					CompanyID: key.CompanyID,
					KeyPrefix: prefix,
					Scopes:    key.Scopes,
				}))
				matched = true

				// Update last_used_at async
				keyID := key.ID
				go func() {
					if err := a.store.UpdateAPIKeyLastUsed(context.Background(), keyID); err != nil {
						slog.Warn("update api key last used", "error", err, "key_prefix", prefix)
					}
				}()
				break
			}
		}

		if !matched {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid API key", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireScope returns middleware that checks whether the authenticated
// API key has the specified scope.
func (a *Auth) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, ok := GetPrincipal(r); ok && p.Can(scope) {
				next.ServeHTTP(w, r)
				return
			}
			forbidden(w, scope)
		})
	}
}

// RequireMethodScope requires read for safe methods and write for anything
// that changes records.
func (a *Auth) RequireMethodScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope := ScopeWrite
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			scope = ScopeRead
		}
		if p, ok := GetPrincipal(r); ok && p.Can(scope) {
			next.ServeHTTP(w, r)
			return
		}
		forbidden(w, scope)
	})
}

func forbidden(w http.ResponseWriter, scope string) {
	response.Error(w, http.StatusForbidden,
		"FORBIDDEN", "Insufficient permissions",
		map[string]string{"required_scope": scope})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
