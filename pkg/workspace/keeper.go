package workspace

import (
	"context"

	"github.com/platinummonkey/gatehouse/pkg/rbac"
)

// Loader finds workspace resources by their codes
type Loader interface {
	GetOrganizationByCode(ctx context.Context, code string) (*rbac.Resource, error)
	GetProjectByCode(ctx context.Context, organizationID, code string) (*rbac.Resource, error)
}

// Keeper holds the organization and project addressed by the current
// request. It implements rbac.Workspace.
type Keeper struct {
	organization *rbac.Resource
	project      *rbac.Resource
}

// NewKeeper returns a keeper with the given resources; either may be nil
func NewKeeper(organization, project *rbac.Resource) *Keeper {
	return &Keeper{organization: organization, project: project}
}

// Load resolves organization and project codes. An empty organization code
// leaves the keeper empty; an empty project code loads the organization only.
func Load(ctx context.Context, loader Loader, organizationCode, projectCode string) (*Keeper, error) {
	k := &Keeper{}
	if organizationCode == "" {
		return k, nil
	}

	org, err := loader.GetOrganizationByCode(ctx, organizationCode)
	if err != nil {
		return nil, err
	}
	k.organization = org

	if projectCode == "" {
		return k, nil
	}

	project, err := loader.GetProjectByCode(ctx, org.ID, projectCode)
	if err != nil {
		return nil, err
	}
	k.project = project
	return k, nil
}

// Organization returns the current organization, or nil
func (k *Keeper) Organization() *rbac.Resource {
	return k.organization
}

// Project returns the current project, or nil
func (k *Keeper) Project() *rbac.Resource {
	return k.project
}

// RequireOrganization returns the organization or a not-found error
func (k *Keeper) RequireOrganization() (*rbac.Resource, error) {
	if k.organization == nil {
		return nil, &rbac.NotFoundError{Kind: rbac.ResourceOrganization}
	}
	return k.organization, nil
}

// RequireProject returns the project or a not-found error
func (k *Keeper) RequireProject() (*rbac.Resource, error) {
	if k.project == nil {
		return nil, &rbac.NotFoundError{Kind: rbac.ResourceProject}
	}
	return k.project, nil
}
