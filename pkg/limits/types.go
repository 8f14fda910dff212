package limits

import "time"

// ServiceLevel is the plan an organization is on
type ServiceLevel string

const (
	ServiceLevelFree  ServiceLevel = "FREE"
	ServiceLevelBasic ServiceLevel = "BASIC"
)

// Kind names a limited resource count
type Kind string

const (
	KindUsers       Kind = "users"
	KindProjects    Kind = "projects"
	KindCollections Kind = "collections"
	KindDocuments   Kind = "documents"
	KindRules       Kind = "rules"
	KindFunctions   Kind = "functions"
)

// Kinds returns every limited resource kind
func Kinds() []Kind {
	return []Kind{KindUsers, KindProjects, KindCollections, KindDocuments, KindRules, KindFunctions}
}

// ServiceLimits are the plan ceilings of one organization. A ceiling of
// zero or less means unlimited.
type ServiceLimits struct {
	ServiceLevel           ServiceLevel `json:"service_level"`
	Users                  int          `json:"users"`
	Projects               int          `json:"projects"`
	Collections            int          `json:"collections"`
	Documents              int          `json:"documents"`
	RulesPerCollection     int          `json:"rules_per_collection"`
	FunctionsPerCollection int          `json:"functions_per_collection"`
	ValidUntil             time.Time    `json:"valid_until,omitzero"`
}

// Ceiling returns the limit for kind, or 0 for an unknown kind
func (l ServiceLimits) Ceiling(kind Kind) int {
	switch kind {
	case KindUsers:
		return l.Users
	case KindProjects:
		return l.Projects
	case KindCollections:
		return l.Collections
	case KindDocuments:
		return l.Documents
	case KindRules:
		return l.RulesPerCollection
	case KindFunctions:
		return l.FunctionsPerCollection
	}
	return 0
}

// Unlimited reports whether limit imposes no ceiling
func Unlimited(limit int) bool {
	return limit <= 0
}

// Exceeds reports whether adding requested items to current would pass
// limit. Negative counts are treated as zero.
func Exceeds(limit int, current, requested int64) bool {
	if Unlimited(limit) {
		return false
	}
	current = max(current, 0)
	requested = max(requested, 0)
	// limit-current cannot overflow with limit > 0 and current >= 0
	return requested > int64(limit)-current
}
