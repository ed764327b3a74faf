package auth

import (
	"context"
	"net/http"

	"github.com/konghome/boardgate/internal/models"
	pkghttp "github.com/konghome/boardgate/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const identityContextKey contextKey = "identity"

// WithIdentity returns ctx carrying id.
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the identity the gate attached, if any.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(models.Identity)
	return id, ok
}

// RequireAuth rejects requests that reached the handler without an identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			pkghttp.WriteUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole enforces role-based access control. The role comes from the
// user store lookup the gate made for this request, not from token claims.
func RequireRole(role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				pkghttp.WriteUnauthorized(w, "authentication required")
				return
			}
			if id.Role != role {
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
