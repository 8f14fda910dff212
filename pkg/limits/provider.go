package limits

import "context"

// Provider returns the plan ceilings currently in force for an organization
type Provider interface {
	GetCurrentLimits(ctx context.Context, organizationID string) (ServiceLimits, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context, organizationID string) (ServiceLimits, error)

// GetCurrentLimits calls f
func (f ProviderFunc) GetCurrentLimits(ctx context.Context, organizationID string) (ServiceLimits, error) {
	return f(ctx, organizationID)
}

// Static returns a provider that hands out l for every organization
func Static(l ServiceLimits) Provider {
	return ProviderFunc(func(context.Context, string) (ServiceLimits, error) {
		return l, nil
	})
}
