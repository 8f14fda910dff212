package middleware

import (
	"fmt"
	"net/http"

	"github.com/platinummonkey/gatehouse/pkg/httputil"
	"github.com/platinummonkey/gatehouse/pkg/rbac"
	"github.com/platinummonkey/gatehouse/pkg/workspace"
)

// RequireRole creates middleware that checks role on the organization or
// project of the route
//
// REQUIRES: WorkspaceMiddleware must run before this middleware
func RequireRole(kind rbac.ResourceType, role rbac.RoleType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc, ok := workspace.FromContext(r.Context())
			if !ok {
				httputil.WriteProblem(w, r, fmt.Errorf("request context missing for %s", r.URL.Path))
				return
			}

			var (
				res *rbac.Resource
				err error
			)
			switch kind {
			case rbac.ResourceOrganization:
				res, err = rc.Workspace.RequireOrganization()
			case rbac.ResourceProject:
				res, err = rc.Workspace.RequireProject()
			default:
				err = fmt.Errorf("RequireRole does not support %s resources", kind)
			}
			if err != nil {
				httputil.WriteProblem(w, r, err)
				return
			}

			if err := rc.Checker.CheckRole(r.Context(), res, role); err != nil {
				httputil.WriteProblem(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
