// pkg/middleware/auth.go
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"docharbor/internal/identity"
	"docharbor/pkg/problems"
)

type ctxPrincipalKey struct{}

// Authenticate validates the bearer token and stores the resulting
// Principal in the request context. Health and metrics endpoints bypass it.
func Authenticate(res *identity.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				problems.Write(w, http.StatusUnauthorized, "unauthenticated", "Missing bearer token", "")
				return
			}
			raw := strings.TrimSpace(authz[len("Bearer "):])
			p, err := res.Resolve(r.Context(), raw)
			if err != nil {
				if errors.Is(err, identity.ErrMalformedClaims) {
					problems.Write(w, http.StatusUnauthorized, "malformed-claims", "Malformed claims", "The credential's claims are inconsistent with its kind")
					return
				}
				problems.Write(w, http.StatusUnauthorized, "unauthenticated", "Invalid token", "")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireOperator rejects non-operator principals.
func RequireOperator() func(http.Handler) http.Handler {
	return requireKind(identity.SystemOperator)
}

// RequireTenantUser rejects non-tenant principals.
func RequireTenantUser() func(http.Handler) http.Handler {
	return requireKind(identity.TenantUser)
}

func requireKind(kind identity.Kind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			p, ok := PrincipalFrom(r.Context())
			if !ok || p.Kind != kind {
				problems.Write(w, http.StatusForbidden, "forbidden", "Forbidden", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithPrincipal(ctx context.Context, p identity.Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (identity.Principal, bool) {
	if v := ctx.Value(ctxPrincipalKey{}); v != nil {
		if p, ok := v.(identity.Principal); ok {
			return p, true
		}
	}
	return identity.Principal{}, false
}
