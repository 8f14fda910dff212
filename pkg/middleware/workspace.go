package middleware

import (
	"net/http"

	"github.com/platinummonkey/gatehouse/pkg/auth"
	"github.com/platinummonkey/gatehouse/pkg/httputil"
	"github.com/platinummonkey/gatehouse/pkg/workspace"
)

const (
	// OrganizationCodeVar is the route variable holding the organization code
	OrganizationCodeVar = "organizationCode"

	// ProjectCodeVar is the route variable holding the project code
	ProjectCodeVar = "projectCode"
)

// WorkspaceMiddleware builds the request context of authenticated calls
//
// REQUIRES: AuthMiddleware must run before this middleware, and the route
// must be matched by gorilla/mux so its variables are available.
type WorkspaceMiddleware struct {
	loader workspace.Loader
	opts   workspace.Options
}

// NewWorkspaceMiddleware creates a new WorkspaceMiddleware
func NewWorkspaceMiddleware(loader workspace.Loader, opts workspace.Options) *WorkspaceMiddleware {
	return &WorkspaceMiddleware{loader: loader, opts: opts}
}

// Handler loads the organization and project of the route, captures the
// view header and stores the resulting workspace.RequestContext
func (m *WorkspaceMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := GetPrincipal(r)
		if principal == nil {
			httputil.WriteProblem(w, r, auth.ErrUnauthenticated)
			return
		}

		keeper, err := workspace.Load(r.Context(),
			m.loader,
			httputil.PathVar(r, OrganizationCodeVar),
			httputil.PathVar(r, ProjectCodeVar),
		)
		if err != nil {
			httputil.WriteProblem(w, r, err)
			return
		}

		view := workspace.NewActiveView()
		if values, ok := r.Header[http.CanonicalHeaderKey(ViewIDHeader)]; ok && len(values) > 0 {
			view.SetViewID(values[0])
		}

		rc := workspace.NewRequestContext(r.Context(), principal, keeper, view, m.opts)
		next.ServeHTTP(w, r.WithContext(workspace.WithRequestContext(r.Context(), rc)))
	})
}
