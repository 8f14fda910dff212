package rbac

// implications lists the roles each role implies beyond itself
var implications = map[RoleType][]RoleType{
	RoleWrite:                {RoleRead, RoleDataRead, RoleDataWrite, RoleDataContribute},
	RoleDataWrite:            {RoleDataRead},
	RoleDataContribute:       {RoleDataRead},
	RoleDataDelete:           {RoleDataRead},
	RoleTechConfig:           {RoleAttributeEdit},
	RoleProjectContribute:    {RoleRead},
	RoleCollectionContribute: {RoleRead},
	RoleViewContribute:       {RoleRead},
	RoleLinkContribute:       {RoleRead},
}

// AllRoleTypes returns every known role type
func AllRoleTypes() []RoleType {
	return []RoleType{
		RoleRead, RoleWrite, RoleManage,
		RoleDataRead, RoleDataWrite, RoleDataContribute, RoleDataDelete,
		RoleCommentContribute, RoleAttributeEdit, RoleTechConfig, RoleUserConfig,
		RoleQueryConfig, RolePerspectiveConfig,
		RoleProjectContribute, RoleCollectionContribute, RoleViewContribute, RoleLinkContribute,
	}
}

// Implies reports whether holding role grants target
func Implies(role, target RoleType) bool {
	if role == target || role == RoleManage {
		return true
	}
	for _, implied := range implications[role] {
		if Implies(implied, target) {
			return true
		}
	}
	return false
}

// RoleSet is the expanded set of role types a principal holds on a resource
type RoleSet map[RoleType]struct{}

// ExpandRoles applies the implication table to the granted roles
func ExpandRoles(roles []Role) RoleSet {
	set := make(RoleSet)
	for _, role := range roles {
		for _, candidate := range AllRoleTypes() {
			if Implies(role.Type, candidate) {
				set[candidate] = struct{}{}
			}
		}
	}
	return set
}

// Has reports whether the set contains role
func (s RoleSet) Has(role RoleType) bool {
	_, ok := s[role]
	return ok
}

// AllRoles returns every role type as a grant, used for owners of a new
// organization or project.
func AllRoles(transitive bool) []Role {
	types := AllRoleTypes()
	roles := make([]Role, 0, len(types))
	for _, t := range types {
		roles = append(roles, Role{Type: t, Transitive: transitive})
	}
	return roles
}

func transitiveOnly(roles []Role) []Role {
	var out []Role
	for _, role := range roles {
		if role.Transitive {
			out = append(out, role)
		}
	}
	return out
}

func hasRead(roles []Role, requireTransitive bool) bool {
	for _, role := range roles {
		if requireTransitive && !role.Transitive {
			continue
		}
		if Implies(role.Type, RoleRead) {
			return true
		}
	}
	return false
}
