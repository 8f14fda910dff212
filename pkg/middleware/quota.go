package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/platinummonkey/gatehouse/pkg/httputil"
	"github.com/platinummonkey/gatehouse/pkg/limits"
	"github.com/platinummonkey/gatehouse/pkg/workspace"
)

// Admitter checks a pending creation against plan ceilings
type Admitter interface {
	Admit(ctx context.Context, intent limits.Intent) error
}

// EnforceLimit rejects a creation request with 402 when one more resource
// of kind would pass the organization's plan ceiling. Documents are counted
// in the route's project.
//
// REQUIRES: WorkspaceMiddleware must run before this middleware
func EnforceLimit(admitter Admitter, kind limits.Kind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc, ok := workspace.FromContext(r.Context())
			if !ok {
				httputil.WriteProblem(w, r, fmt.Errorf("request context missing for %s", r.URL.Path))
				return
			}

			org, err := rc.Workspace.RequireOrganization()
			if err != nil {
				httputil.WriteProblem(w, r, err)
				return
			}

			intent := limits.Intent{OrganizationID: org.ID, Kind: kind, Requested: 1}
			if kind == limits.KindDocuments {
				project, err := rc.Workspace.RequireProject()
				if err != nil {
					httputil.WriteProblem(w, r, err)
					return
				}
				intent.ScopeID = project.ID
			}

			if err := admitter.Admit(r.Context(), intent); err != nil {
				httputil.WriteProblem(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
