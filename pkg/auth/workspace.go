package auth

import (
	"strconv"
	"strings"

	"github.com/platinummonkey/gatehouse/pkg/rbac"
)

const (
	consonants      = "bcdfghjklmnpqrstvwxyzBCDFGHJKLMNPQRSTVWXYZ"
	orgCodeLength   = 5
	orgCodePadding  = "LMR"
	projectPrefix   = "PRJ"
	demoOrgName     = "Lumeer demo"
	demoProjectName = "Project"
)

// DefaultWorkspace is the demo organization and project given to a user who
// belongs to no organization yet. IDs are left empty for the caller to
// assign; Project.ParentID is filled in once the organization has one.
type DefaultWorkspace struct {
	Organization *rbac.Resource
	Project      *rbac.Resource
}

// NewDefaultWorkspace builds the demo workspace for p, picking codes that
// do not collide with the ones already in use. It has no side effects.
func NewDefaultWorkspace(p *Principal, usedOrgCodes, usedProjectCodes []string) DefaultWorkspace {
	grants := rbac.Permissions{
		Users: []rbac.Permission{{ID: p.ID, Roles: rbac.AllRoles(false)}},
	}

	return DefaultWorkspace{
		Organization: &rbac.Resource{
			Type:        rbac.ResourceOrganization,
			Code:        organizationCode(p.Email, usedOrgCodes),
			Name:        demoOrgName,
			Permissions: grants,
		},
		Project: &rbac.Resource{
			Type:        rbac.ResourceProject,
			Code:        projectCode(usedProjectCodes),
			Name:        demoProjectName,
			Permissions: grants,
		},
	}
}

// organizationCode takes the first five consonants of the email, pads short
// results with LMR and appends 2, 3, ... until the code is unused.
func organizationCode(email string, used []string) string {
	var b strings.Builder
	for _, r := range email {
		if strings.ContainsRune(consonants, r) {
			b.WriteRune(r)
		}
	}

	code := b.String()
	if len(code) < orgCodeLength {
		code += orgCodePadding
	}
	if len(code) > orgCodeLength {
		code = code[:orgCodeLength]
	}
	code = strings.ToUpper(code)

	taken := toSet(used)
	if _, ok := taken[code]; !ok {
		return code
	}
	for n := 2; ; n++ {
		candidate := code + strconv.Itoa(n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

func projectCode(used []string) string {
	taken := toSet(used)
	for n := 1; ; n++ {
		candidate := projectPrefix + strconv.Itoa(n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
