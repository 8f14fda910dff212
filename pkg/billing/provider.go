package billing

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/gatehouse/pkg/limits"
	"github.com/platinummonkey/gatehouse/pkg/observability"
)

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = 5 * time.Minute
)

// CachedLimitsProvider derives service limits from payments and caches them
// per organization
type CachedLimitsProvider struct {
	store   PaymentStore
	cache   *lru.LRU[string, limits.ServiceLimits]
	metrics *observability.Metrics
	now     func() time.Time
}

// NewCachedLimitsProvider creates a provider over store. Non-positive size
// or ttl fall back to defaults.
func NewCachedLimitsProvider(store PaymentStore, size int, ttl time.Duration, metrics *observability.Metrics) *CachedLimitsProvider {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	return &CachedLimitsProvider{
		store:   store,
		cache:   lru.NewLRU[string, limits.ServiceLimits](size, nil, ttl),
		metrics: metrics,
		now:     time.Now,
	}
}

// GetCurrentLimits returns the limits in force for an organization
func (p *CachedLimitsProvider) GetCurrentLimits(ctx context.Context, organizationID string) (limits.ServiceLimits, error) {
	if l, ok := p.cache.Get(organizationID); ok {
		p.metrics.RecordLimitsLookup(true)
		return l, nil
	}
	p.metrics.RecordLimitsLookup(false)

	now := p.now()
	payment, err := p.store.PaymentAt(ctx, organizationID, now)
	if err != nil {
		return limits.ServiceLimits{}, err
	}
	if payment != nil && !payment.ActiveAt(now) {
		payment = nil
	}

	l := LimitsFor(payment)
	p.cache.Add(organizationID, l)
	return l, nil
}

// SavePayment stores a payment and drops the cached limits of its organization
func (p *CachedLimitsProvider) SavePayment(ctx context.Context, payment *Payment) error {
	if err := p.store.SavePayment(ctx, payment); err != nil {
		return err
	}
	p.Invalidate(payment.OrganizationID)
	return nil
}

// Invalidate drops the cached limits of an organization
func (p *CachedLimitsProvider) Invalidate(organizationID string) {
	p.cache.Remove(organizationID)
}
