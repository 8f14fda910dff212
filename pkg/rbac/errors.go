package rbac

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every NotFoundError
var ErrNotFound = errors.New("not found")

// NotFoundError reports a missing resource. For organizations and projects it
// means the request carries no such workspace context.
type NotFoundError struct {
	Kind ResourceType
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Kind)
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NoPermissionError is returned when the principal lacks a role on a resource
type NoPermissionError struct {
	Resource ResourceRef
	Role     RoleType
}

func (e *NoPermissionError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("no permission on %s", e.Resource)
	}
	return fmt.Sprintf("no %s permission on %s", e.Role, e.Resource)
}

// IsNoPermission checks if an error is a NoPermissionError
func IsNoPermission(err error) bool {
	var target *NoPermissionError
	return errors.As(err, &target)
}

// IsNotFound checks if an error is a NotFoundError
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
