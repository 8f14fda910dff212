package rbac

// Reason explains a Decision
type Reason string

const (
	ReasonGranted          Reason = "granted"
	ReasonManager          Reason = "manager"
	ReasonView             Reason = "view"
	ReasonSecurityDisabled Reason = "security_disabled"
	ReasonNoPermission     Reason = "no_permission"
)

// Decision is the outcome of a single authorization check
type Decision struct {
	Allowed  bool        `json:"allowed"`
	Reason   Reason      `json:"reason"`
	Resource ResourceRef `json:"resource"`
	Role     RoleType    `json:"role"`
}

func allow(res *Resource, role RoleType, reason Reason) Decision {
	return Decision{Allowed: true, Reason: reason, Resource: res.Ref(), Role: role}
}

func deny(res *Resource, role RoleType) Decision {
	return Decision{Allowed: false, Reason: ReasonNoPermission, Resource: res.Ref(), Role: role}
}

// Err converts a denial into a NoPermissionError
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &NoPermissionError{Resource: d.Resource, Role: d.Role}
}
