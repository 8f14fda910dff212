// Package billing maps organization payments to service limits.
//
// An organization without a paid payment covering the current time is on
// the FREE plan. A BASIC payment lifts most ceilings and caps users at the
// number of seats paid for.
//
//	provider := billing.NewCachedLimitsProvider(billing.NewSQLPaymentStore(db), 1024, 5*time.Minute, metrics)
//	l, err := provider.GetCurrentLimits(ctx, orgID)
//
// CachedLimitsProvider implements limits.Provider. Cached entries expire
// after the TTL and are dropped when a payment of the organization is saved.
package billing
