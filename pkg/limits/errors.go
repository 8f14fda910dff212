package limits

import (
	"errors"
	"fmt"

	"github.com/platinummonkey/gatehouse/pkg/rbac"
)

// QuotaExceededError is returned when a creation would pass a plan ceiling
type QuotaExceededError struct {
	OrganizationID string
	Kind           Kind
	Limit          int
	Current        int64
	Requested      int64
	Resource       *rbac.ResourceRef
}

func (e *QuotaExceededError) Error() string {
	msg := fmt.Sprintf("service limit exceeded for %s: %d existing + %d requested, %d allowed",
		e.Kind, e.Current, e.Requested, e.Limit)
	if e.Resource != nil {
		msg += fmt.Sprintf(" (%s)", e.Resource)
	}
	return msg
}

// IsQuotaExceeded checks if an error is a QuotaExceededError
func IsQuotaExceeded(err error) bool {
	var target *QuotaExceededError
	return errors.As(err, &target)
}
