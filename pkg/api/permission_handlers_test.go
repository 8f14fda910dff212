package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatehouse/pkg/middleware"
	"github.com/platinummonkey/gatehouse/pkg/rbac"
)

const projectChecks = "/organizations/ACME/projects/PRJ1/permissions/check"

func TestGetManagerStatus(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/organizations/ACME/permissions", "alice-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[ManagerStatus](t, w)
	assert.Equal(t, "alice", status.UserID)
	assert.False(t, status.OrganizationManager)
	assert.Nil(t, status.ProjectManager)

	w = f.do(t, http.MethodGet, "/organizations/ACME/projects/PRJ1/permissions", "bob-token", nil,
		middleware.ViewIDHeader, "view-1")
	require.Equal(t, http.StatusOK, w.Code)
	status = decode[ManagerStatus](t, w)
	assert.True(t, status.OrganizationManager)
	require.NotNil(t, status.ProjectManager)
	assert.True(t, *status.ProjectManager)
	assert.Equal(t, "view-1", status.ViewID)
}

func TestCheckDirectGrants(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		token   string
		req     CheckRequest
		allowed bool
		reason  rbac.Reason
	}{
		{
			name:    "organization read",
			token:   "alice-token",
			req:     CheckRequest{ResourceType: rbac.ResourceOrganization, Role: rbac.RoleRead},
			allowed: true,
			reason:  rbac.ReasonGranted,
		},
		{
			name:   "organization manage denied",
			token:  "alice-token",
			req:    CheckRequest{ResourceType: rbac.ResourceOrganization, Role: rbac.RoleManage},
			reason: rbac.ReasonNoPermission,
		},
		{
			name:    "collection read",
			token:   "alice-token",
			req:     CheckRequest{ResourceType: rbac.ResourceCollection, ResourceID: "col-orders", Role: rbac.RoleRead},
			allowed: true,
			reason:  rbac.ReasonGranted,
		},
		{
			name:   "collection without grant",
			token:  "alice-token",
			req:    CheckRequest{ResourceType: rbac.ResourceCollection, ResourceID: "col-customers", Role: rbac.RoleRead},
			reason: rbac.ReasonNoPermission,
		},
		{
			name:    "manager bypass",
			token:   "bob-token",
			req:     CheckRequest{ResourceType: rbac.ResourceCollection, ResourceID: "col-customers", Role: rbac.RoleDataDelete},
			allowed: true,
			reason:  rbac.ReasonManager,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, projectChecks, tt.token, tt.req)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			d := decode[rbac.Decision](t, w)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, tt.req.Role, d.Role)
		})
	}
}

func TestCheckThroughActiveView(t *testing.T) {
	f := newFixture(t)
	req := CheckRequest{
		ResourceType: rbac.ResourceCollection,
		ResourceID:   "col-orders",
		Role:         rbac.RoleRead,
		ViewRole:     rbac.RoleRead,
	}

	w := f.do(t, http.MethodPost, projectChecks, "carol-token", req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[rbac.Decision](t, w).Allowed)

	w = f.do(t, http.MethodPost, projectChecks, "carol-token", req, middleware.ViewIDHeader, "view-1")
	require.Equal(t, http.StatusOK, w.Code)
	d := decode[rbac.Decision](t, w)
	assert.True(t, d.Allowed)
	assert.Equal(t, rbac.ReasonView, d.Reason)

	// the view does not reach the customers collection
	req.ResourceID = "col-customers"
	w = f.do(t, http.MethodPost, projectChecks, "carol-token", req, middleware.ViewIDHeader, "view-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[rbac.Decision](t, w).Allowed)

	// a query wider than the view is refused
	req.ResourceID = "col-orders"
	req.Query = &rbac.Query{Stems: []rbac.QueryStem{{CollectionID: "col-orders", LinkTypeIDs: []string{"lt-1"}}}}
	w = f.do(t, http.MethodPost, projectChecks, "carol-token", req, middleware.ViewIDHeader, "view-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[rbac.Decision](t, w).Allowed)
}

func TestCheckLinkType(t *testing.T) {
	f := newFixture(t)
	req := CheckRequest{ResourceType: rbac.ResourceLinkType, ResourceID: "lt-1", Role: rbac.RoleRead}

	w := f.do(t, http.MethodPost, projectChecks, "alice-token", req)
	require.Equal(t, http.StatusOK, w.Code)
	d := decode[rbac.Decision](t, w)
	assert.False(t, d.Allowed)
	assert.Equal(t, rbac.ResourceRef{Type: rbac.ResourceLinkType, ID: "lt-1"}, d.Resource)

	w = f.do(t, http.MethodPost, projectChecks, "bob-token", req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[rbac.Decision](t, w).Allowed)
}

func TestCheckRejectsBadRequests(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		path   string
		req    CheckRequest
		status int
	}{
		{"unknown role", projectChecks, CheckRequest{ResourceType: rbac.ResourceProject, Role: "Admin"}, http.StatusBadRequest},
		{"unknown view role", projectChecks, CheckRequest{ResourceType: rbac.ResourceProject, Role: rbac.RoleRead, ViewRole: "Peek"}, http.StatusBadRequest},
		{"unknown resource type", projectChecks, CheckRequest{ResourceType: "document", Role: rbac.RoleRead}, http.StatusBadRequest},
		{"unknown collection", projectChecks, CheckRequest{ResourceType: rbac.ResourceCollection, ResourceID: "col-x", Role: rbac.RoleRead}, http.StatusNotFound},
		{"unknown view", projectChecks, CheckRequest{ResourceType: rbac.ResourceView, ResourceID: "view-x", Role: rbac.RoleRead}, http.StatusNotFound},
		{"unknown link type", projectChecks, CheckRequest{ResourceType: rbac.ResourceLinkType, ResourceID: "lt-x", Role: rbac.RoleRead}, http.StatusNotFound},
		{"collection outside a project", "/organizations/ACME/permissions/check", CheckRequest{ResourceType: rbac.ResourceCollection, ResourceID: "col-orders", Role: rbac.RoleRead}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, tt.path, "alice-token", tt.req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}
