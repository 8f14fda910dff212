package middleware

import (
	"context"
	"net/http"

	"github.com/platinummonkey/gatehouse/pkg/auth"
	"github.com/platinummonkey/gatehouse/pkg/contextkeys"
	"github.com/platinummonkey/gatehouse/pkg/httputil"
	"github.com/platinummonkey/gatehouse/pkg/observability"
)

// Sessions resolves bearer tokens to principals
type Sessions interface {
	Resolve(ctx context.Context, token string) (*auth.Principal, error)
	Forget(ctx context.Context, token string)
}

// AuthMiddleware authenticates requests against the session cache
type AuthMiddleware struct {
	sessions     Sessions
	skipSecurity bool
}

// NewAuthMiddleware creates a new authentication middleware. With
// skipSecurity set a missing Authorization header is not an error.
func NewAuthMiddleware(sessions Sessions, skipSecurity bool) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions, skipSecurity: skipSecurity}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.ExtractBearerToken(r.Header.Get("Authorization"))
		if err != nil && !m.skipSecurity {
			httputil.WriteProblem(w, r, err)
			return
		}

		principal, err := m.sessions.Resolve(r.Context(), token)
		if err != nil {
			httputil.WriteProblem(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), contextkeys.PrincipalKey, principal)
		ctx = context.WithValue(ctx, contextkeys.TokenKey, token)
		ctx = observability.WithUserID(ctx, principal.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logout drops the caller's session so the next request re-verifies
func (m *AuthMiddleware) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := r.Context().Value(contextkeys.TokenKey).(string); ok && token != "" {
		m.sessions.Forget(r.Context(), token)
	}
	httputil.WriteNoContent(w)
}

// GetPrincipal extracts the authenticated principal from request
func GetPrincipal(r *http.Request) *auth.Principal {
	principal, _ := r.Context().Value(contextkeys.PrincipalKey).(*auth.Principal)
	return principal
}
