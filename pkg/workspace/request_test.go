package workspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatehouse/pkg/auth"
	"github.com/platinummonkey/gatehouse/pkg/observability"
	"github.com/platinummonkey/gatehouse/pkg/rbac"
)

type staticStore struct {
	permissions map[rbac.ResourceRef]rbac.Permissions
}

func (s *staticStore) GetPermissions(ctx context.Context, ref rbac.ResourceRef) (rbac.Permissions, error) {
	return s.permissions[ref], nil
}

func (s *staticStore) GetGroupsOfUser(ctx context.Context, organizationID, userID string) ([]string, error) {
	return nil, nil
}

func (s *staticStore) GetView(ctx context.Context, id string) (*rbac.View, error) {
	return nil, &rbac.NotFoundError{Kind: rbac.ResourceView, ID: id}
}

func (s *staticStore) GetLinkTypes(ctx context.Context, projectID string) ([]rbac.LinkType, error) {
	return nil, nil
}

func (s *staticStore) GetCollections(ctx context.Context, ids []string) ([]rbac.Resource, error) {
	return nil, nil
}

func TestNewRequestContext(t *testing.T) {
	org := &rbac.Resource{ID: "org-1", Type: rbac.ResourceOrganization, Code: "ACME"}
	store := &staticStore{permissions: map[rbac.ResourceRef]rbac.Permissions{
		org.Ref(): {Users: []rbac.Permission{{ID: "u1", Roles: []rbac.Role{{Type: rbac.RoleRead}}}}},
	}}

	ctx := observability.WithCorrelationID(context.Background(), "corr-1")
	principal := &auth.Principal{ID: "u1"}
	rc := NewRequestContext(ctx, principal, NewKeeper(org, nil), nil, Options{
		Store:  store,
		Logger: observability.NopLogger(),
	})

	assert.Equal(t, "corr-1", rc.CorrelationID)
	assert.Same(t, principal, rc.Principal)
	assert.False(t, rc.View.IsSet())
	assert.Equal(t, "u1", rc.Checker.UserID())

	ok, err := rc.Checker.HasRole(ctx, org, rbac.RoleRead)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rc.Checker.HasRole(ctx, org, rbac.RoleManage)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRequestContext_SkipSecurity(t *testing.T) {
	org := &rbac.Resource{ID: "org-1", Type: rbac.ResourceOrganization}
	rc := NewRequestContext(context.Background(), &auth.Principal{ID: "u1"}, nil, nil, Options{
		Store:        &staticStore{},
		SkipSecurity: true,
	})

	ok, err := rc.Checker.HasRole(context.Background(), org, rbac.RoleManage)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, rc.Workspace.Organization())
}

func TestRequestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	rc := &RequestContext{Principal: &auth.Principal{ID: "u1"}}
	got, ok := FromContext(WithRequestContext(context.Background(), rc))
	require.True(t, ok)
	assert.Same(t, rc, got)
}
