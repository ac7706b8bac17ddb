package auth

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/everpower/backoffice/internal/platform/httpx"
)

// Middleware wraps handlers with bearer-token checks.
type Middleware struct {
	issuer *TokenIssuer
}

// NewMiddleware builds the route guards around a token issuer.
func NewMiddleware(issuer *TokenIssuer) *Middleware {
	return &Middleware{issuer: issuer}
}

// RequireAuth rejects requests without a valid bearer token and attaches
// the principal to the context.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			httpx.RespondError(w, httpx.Coded("auth/missing-token",
				fmt.Errorf("missing bearer token: %w", httpx.ErrUnauthorized)))
			return
		}
		principal, err := m.issuer.Verify(raw)
		if err != nil {
			httpx.RespondError(w, httpx.Coded("auth/invalid-token", err))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// RequireAdmin rejects non-admin principals. Mount inside RequireAuth.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := FromContext(r.Context())
		if !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		if !principal.IsAdmin() {
			httpx.RespondError(w, httpx.Coded("auth/admin-only",
				fmt.Errorf("admin role required: %w", httpx.ErrForbidden)))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSelfOrAdmin allows admins through and otherwise requires the id
// route parameter to match the principal. Mount inside RequireAuth.
func (m *Middleware) RequireSelfOrAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := FromContext(r.Context())
		if !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		if !principal.IsAdmin() {
			id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
			if err != nil || id != principal.UserID {
				httpx.RespondError(w, httpx.Coded("auth/self-only",
					fmt.Errorf("cannot act on another account: %w", httpx.ErrForbidden)))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
