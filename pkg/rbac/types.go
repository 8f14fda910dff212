package rbac

import "fmt"

// RoleType is a named capability that can be granted on a resource
type RoleType string

const (
	RoleRead                 RoleType = "Read"
	RoleWrite                RoleType = "Write"
	RoleManage               RoleType = "Manage"
	RoleDataRead             RoleType = "DataRead"
	RoleDataWrite            RoleType = "DataWrite"
	RoleDataContribute       RoleType = "DataContribute"
	RoleDataDelete           RoleType = "DataDelete"
	RoleCommentContribute    RoleType = "CommentContribute"
	RoleAttributeEdit        RoleType = "AttributeEdit"
	RoleTechConfig           RoleType = "TechConfig"
	RoleUserConfig           RoleType = "UserConfig"
	RoleQueryConfig          RoleType = "QueryConfig"
	RolePerspectiveConfig    RoleType = "PerspectiveConfig"
	RoleProjectContribute    RoleType = "ProjectContribute"
	RoleCollectionContribute RoleType = "CollectionContribute"
	RoleViewContribute       RoleType = "ViewContribute"
	RoleLinkContribute       RoleType = "LinkContribute"
)

// Role is a granted role. Transitive roles granted on an organization or
// project also apply to every resource nested in it.
type Role struct {
	Type       RoleType `json:"type"`
	Transitive bool     `json:"transitive,omitempty"`
}

// String returns a string representation of the role
func (r Role) String() string {
	if r.Transitive {
		return string(r.Type) + "+"
	}
	return string(r.Type)
}

// Permission binds a set of roles to a user or group id
type Permission struct {
	ID    string `json:"id"`
	Roles []Role `json:"roles"`
}

// Permissions holds the user and group grants of a single resource
type Permissions struct {
	Users  []Permission `json:"users"`
	Groups []Permission `json:"groups"`
}

// UserRoles returns the roles granted directly to userID
func (p Permissions) UserRoles(userID string) []Role {
	var roles []Role
	for _, perm := range p.Users {
		if perm.ID != "" && perm.ID == userID {
			roles = append(roles, perm.Roles...)
		}
	}
	return roles
}

// GroupRoles returns the roles granted to any of groupIDs
func (p Permissions) GroupRoles(groupIDs []string) []Role {
	if len(groupIDs) == 0 {
		return nil
	}
	member := make(map[string]struct{}, len(groupIDs))
	for _, id := range groupIDs {
		member[id] = struct{}{}
	}
	var roles []Role
	for _, perm := range p.Groups {
		if _, ok := member[perm.ID]; ok {
			roles = append(roles, perm.Roles...)
		}
	}
	return roles
}

// ResourceType identifies the variant of a permission-bearing resource
type ResourceType string

const (
	ResourceOrganization ResourceType = "organization"
	ResourceProject      ResourceType = "project"
	ResourceCollection   ResourceType = "collection"
	ResourceLinkType     ResourceType = "link_type"
	ResourceView         ResourceType = "view"
)

// ProjectScoped reports whether resources of this type live inside a project
func (t ResourceType) ProjectScoped() bool {
	switch t {
	case ResourceCollection, ResourceLinkType, ResourceView:
		return true
	}
	return false
}

// ResourceRef is a typed reference to a resource
type ResourceRef struct {
	Type ResourceType `json:"type"`
	ID   string       `json:"id"`
}

// String returns a string representation of the reference
func (r ResourceRef) String() string {
	return fmt.Sprintf("%s:%s", r.Type, r.ID)
}

// Resource is any permission-bearing entity. ParentID is the owning
// organization of a project, or the owning project of a collection, link
// type or view.
type Resource struct {
	ID           string       `json:"id"`
	Type         ResourceType `json:"type"`
	ParentID     string       `json:"parent_id,omitempty"`
	Code         string       `json:"code,omitempty"`
	Name         string       `json:"name"`
	Permissions  Permissions  `json:"permissions"`
	NonRemovable bool         `json:"non_removable,omitempty"`
}

// Ref returns the typed reference of the resource
func (r *Resource) Ref() ResourceRef {
	return ResourceRef{Type: r.Type, ID: r.ID}
}

// LinkType connects two collections of the same project
type LinkType struct {
	Resource
	CollectionIDs []string `json:"collection_ids"`
}

// View is a saved query shared with other users. Readers of a view may
// borrow the author's roles on the collections its query touches.
type View struct {
	Resource
	AuthorID string `json:"author_id"`
	Query    Query  `json:"query"`
}
