package auth

import (
	"slices"
	"sort"
)

// Principal is the authenticated user behind a request. Values handed out
// by the session cache are shared between requests and must not be mutated.
type Principal struct {
	ID            string              `json:"id"`
	AuthIDs       []string            `json:"auth_ids"`
	Email         string              `json:"email"`
	Name          string              `json:"name"`
	EmailVerified bool                `json:"email_verified"`
	Groups        map[string][]string `json:"groups,omitempty"` // organization id -> group ids
}

// HasAuthID reports whether id is one of the principal's external identities
func (p *Principal) HasAuthID(id string) bool {
	return slices.Contains(p.AuthIDs, id)
}

// GroupsIn returns the principal's groups within one organization
func (p *Principal) GroupsIn(organizationID string) []string {
	return p.Groups[organizationID]
}

// OrganizationIDs returns the organizations the principal has group
// memberships in, sorted
func (p *Principal) OrganizationIDs() []string {
	ids := make([]string, 0, len(p.Groups))
	for id := range p.Groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Claims is what the identity provider returns for a bearer token
type Claims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"email_verified"`
}
