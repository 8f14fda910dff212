package api

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/gatehouse/pkg/httputil"
	"github.com/platinummonkey/gatehouse/pkg/middleware"
	"github.com/platinummonkey/gatehouse/pkg/rbac"
	"github.com/platinummonkey/gatehouse/pkg/workspace"
)

// CheckRequest asks whether the caller holds a role on one resource.
// ResourceID is ignored for organizations and projects, which come from
// the route.
type CheckRequest struct {
	ResourceType rbac.ResourceType `json:"resource_type"`
	ResourceID   string            `json:"resource_id,omitempty"`
	Role         rbac.RoleType     `json:"role"`

	// ViewRole enables delegation through the active view
	ViewRole rbac.RoleType `json:"view_role,omitempty"`

	// Query narrows the view delegation to a caller-supplied query
	Query *rbac.Query `json:"query,omitempty"`
}

// ManagerStatus reports the caller's management rights in the workspace
type ManagerStatus struct {
	UserID              string `json:"user_id"`
	OrganizationManager bool   `json:"organization_manager"`
	ProjectManager      *bool  `json:"project_manager,omitempty"`
	ViewID              string `json:"view_id,omitempty"`
}

// PermissionHandlers answers authorization questions for the caller
type PermissionHandlers struct {
	store rbac.Store
}

// NewPermissionHandlers creates a new PermissionHandlers
func NewPermissionHandlers(store rbac.Store) *PermissionHandlers {
	return &PermissionHandlers{store: store}
}

// RegisterRoutes registers permission routes on an organization router
func (h *PermissionHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/permissions", h.GetManagerStatus).Methods(http.MethodGet)
	router.HandleFunc("/permissions/check", h.Check).Methods(http.MethodPost)
	router.HandleFunc("/projects/{"+middleware.ProjectCodeVar+"}/permissions", h.GetManagerStatus).Methods(http.MethodGet)
	router.HandleFunc("/projects/{"+middleware.ProjectCodeVar+"}/permissions/check", h.Check).Methods(http.MethodPost)
}

// GetManagerStatus reports whether the caller manages the organization and,
// on project routes, the project
func (h *PermissionHandlers) GetManagerStatus(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}
	if _, err := rc.Workspace.RequireOrganization(); err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	status := ManagerStatus{UserID: rc.Principal.ID, ViewID: rc.View.ViewID()}

	var err error
	status.OrganizationManager, err = rc.Checker.IsManager(r.Context())
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	if rc.Workspace.Project() != nil {
		manager, err := rc.Checker.IsProjectManager(r.Context())
		if err != nil {
			httputil.WriteProblem(w, r, err)
			return
		}
		status.ProjectManager = &manager
	}

	httputil.WriteSuccess(w, status)
}

// Check evaluates a CheckRequest and returns the decision. A denial is a
// successful answer, not an error.
func (h *PermissionHandlers) Check(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	var req CheckRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !slices.Contains(rbac.AllRoleTypes(), req.Role) {
		httputil.WriteBadRequest(w, fmt.Sprintf("unknown role: %q", req.Role))
		return
	}
	if req.ViewRole != "" && !slices.Contains(rbac.AllRoleTypes(), req.ViewRole) {
		httputil.WriteBadRequest(w, fmt.Sprintf("unknown view role: %q", req.ViewRole))
		return
	}

	ctx := r.Context()
	var decision rbac.Decision

	switch req.ResourceType {
	case rbac.ResourceLinkType:
		lt, err := h.linkType(ctx, rc, req.ResourceID)
		if err != nil {
			httputil.WriteProblem(w, r, err)
			return
		}
		allowed, err := rc.Checker.HasRoleInLinkTypeWithView(ctx, lt, req.Role)
		if err != nil {
			httputil.WriteProblem(w, r, err)
			return
		}
		decision = decisionOf(&lt.Resource, req.Role, allowed)

	case rbac.ResourceOrganization, rbac.ResourceProject, rbac.ResourceCollection, rbac.ResourceView:
		res, err := h.resource(ctx, rc, req.ResourceType, req.ResourceID)
		if err != nil {
			httputil.WriteProblem(w, r, err)
			return
		}
		decision, err = decide(ctx, rc.Checker, res, req)
		if err != nil {
			httputil.WriteProblem(w, r, err)
			return
		}

	default:
		httputil.WriteBadRequest(w, fmt.Sprintf("unknown resource type: %q", req.ResourceType))
		return
	}

	httputil.WriteSuccess(w, decision)
}

func decide(ctx context.Context, checker *rbac.Checker, res *rbac.Resource, req CheckRequest) (rbac.Decision, error) {
	switch {
	case req.ViewRole == "":
		return checker.Decide(ctx, res, req.Role)
	case req.Query != nil:
		allowed, err := checker.HasRoleWithViewQuery(ctx, res, req.Role, req.ViewRole, *req.Query)
		return decisionOf(res, req.Role, allowed), err
	default:
		return checker.DecideWithView(ctx, res, req.Role, req.ViewRole)
	}
}

func decisionOf(res *rbac.Resource, role rbac.RoleType, allowed bool) rbac.Decision {
	d := rbac.Decision{Allowed: allowed, Reason: rbac.ReasonNoPermission, Resource: res.Ref(), Role: role}
	if allowed {
		d.Reason = rbac.ReasonGranted
	}
	return d
}

// resource loads the target of a check within the route's workspace
func (h *PermissionHandlers) resource(ctx context.Context, rc *workspace.RequestContext, kind rbac.ResourceType, id string) (*rbac.Resource, error) {
	if kind == rbac.ResourceOrganization {
		return rc.Workspace.RequireOrganization()
	}

	project, err := rc.Workspace.RequireProject()
	if err != nil {
		return nil, err
	}

	switch kind {
	case rbac.ResourceProject:
		return project, nil
	case rbac.ResourceCollection:
		collections, err := h.store.GetCollections(ctx, []string{id})
		if err != nil {
			return nil, err
		}
		for i := range collections {
			if collections[i].ID == id && collections[i].ParentID == project.ID {
				return &collections[i], nil
			}
		}
	case rbac.ResourceView:
		view, err := h.store.GetView(ctx, id)
		if err != nil {
			return nil, err
		}
		if view.ParentID == project.ID {
			return &view.Resource, nil
		}
	}
	return nil, &rbac.NotFoundError{Kind: kind, ID: id}
}

func (h *PermissionHandlers) linkType(ctx context.Context, rc *workspace.RequestContext, id string) (*rbac.LinkType, error) {
	project, err := rc.Workspace.RequireProject()
	if err != nil {
		return nil, err
	}
	linkTypes, err := h.store.GetLinkTypes(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	for i := range linkTypes {
		if linkTypes[i].ID == id {
			return &linkTypes[i], nil
		}
	}
	return nil, &rbac.NotFoundError{Kind: rbac.ResourceLinkType, ID: id}
}

// requestContext fetches the workspace.RequestContext or answers 500
func requestContext(w http.ResponseWriter, r *http.Request) (*workspace.RequestContext, bool) {
	rc, ok := workspace.FromContext(r.Context())
	if !ok {
		httputil.WriteProblem(w, r, fmt.Errorf("request context missing for %s", r.URL.Path))
		return nil, false
	}
	return rc, true
}
