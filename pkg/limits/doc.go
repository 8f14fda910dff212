// Package limits enforces plan-based ceilings on resource counts.
//
// A Checker asks a Provider for the ServiceLimits of the owning
// organization and rejects a creation with a *QuotaExceededError when the
// existing count plus the requested increment would pass the ceiling. A
// ceiling of zero or less is unlimited. With SkipLimits set every check
// passes without consulting the provider.
//
//	checker := limits.NewChecker(limits.Config{Provider: provider})
//	if err := checker.CheckDocuments(ctx, orgID, existing, int64(len(batch))); err != nil {
//		return err
//	}
//
// Every rejection is handed to the configured Notifier in the background.
package limits
