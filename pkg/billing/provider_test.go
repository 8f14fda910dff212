package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatehouse/pkg/limits"
	"github.com/platinummonkey/gatehouse/pkg/observability"
)

type memoryPayments struct {
	mu       sync.Mutex
	payments map[string]*Payment
	lookups  int
	err      error
}

func newMemoryPayments() *memoryPayments {
	return &memoryPayments{payments: make(map[string]*Payment)}
}

func (m *memoryPayments) PaymentAt(ctx context.Context, organizationID string, at time.Time) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.err != nil {
		return nil, m.err
	}
	return m.payments[organizationID], nil
}

func (m *memoryPayments) SavePayment(ctx context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.OrganizationID] = p
	return nil
}

func newTestProvider(store PaymentStore, metrics *observability.Metrics) *CachedLimitsProvider {
	p := NewCachedLimitsProvider(store, 16, time.Hour, metrics)
	p.now = func() time.Time { return epoch }
	return p
}

func basicPayment(orgID string) *Payment {
	return &Payment{
		ID:             "pay-" + orgID,
		OrganizationID: orgID,
		ServiceLevel:   limits.ServiceLevelBasic,
		State:          PaymentStatePaid,
		Users:          20,
		ValidFrom:      epoch.AddDate(0, -1, 0),
		ValidUntil:     epoch.AddDate(0, 1, 0),
	}
}

func TestCachedLimitsProvider_FreeWithoutPayment(t *testing.T) {
	provider := newTestProvider(newMemoryPayments(), nil)

	l, err := provider.GetCurrentLimits(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, FreeLimits(), l)
}

func TestCachedLimitsProvider_BasicPayment(t *testing.T) {
	store := newMemoryPayments()
	store.payments["org-1"] = basicPayment("org-1")
	provider := newTestProvider(store, nil)

	l, err := provider.GetCurrentLimits(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, limits.ServiceLevelBasic, l.ServiceLevel)
	assert.Equal(t, 20, l.Users)
}

func TestCachedLimitsProvider_IgnoresInactivePayment(t *testing.T) {
	store := newMemoryPayments()
	p := basicPayment("org-1")
	p.State = PaymentStateRefunded
	store.payments["org-1"] = p
	provider := newTestProvider(store, nil)

	l, err := provider.GetCurrentLimits(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, limits.ServiceLevelFree, l.ServiceLevel)
}

func TestCachedLimitsProvider_CachesPerOrganization(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	store := newMemoryPayments()
	provider := newTestProvider(store, metrics)
	ctx := context.Background()

	for range 3 {
		_, err := provider.GetCurrentLimits(ctx, "org-1")
		require.NoError(t, err)
	}
	_, err := provider.GetCurrentLimits(ctx, "org-2")
	require.NoError(t, err)

	assert.Equal(t, 2, store.lookups)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.LimitsCacheTotal.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.LimitsCacheTotal.WithLabelValues("miss")))
}

func TestCachedLimitsProvider_SavePaymentInvalidates(t *testing.T) {
	store := newMemoryPayments()
	provider := newTestProvider(store, nil)
	ctx := context.Background()

	l, err := provider.GetCurrentLimits(ctx, "org-1")
	require.NoError(t, err)
	require.Equal(t, limits.ServiceLevelFree, l.ServiceLevel)

	require.NoError(t, provider.SavePayment(ctx, basicPayment("org-1")))

	l, err = provider.GetCurrentLimits(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, limits.ServiceLevelBasic, l.ServiceLevel)
	assert.Equal(t, 2, store.lookups)
}

func TestCachedLimitsProvider_StoreError(t *testing.T) {
	store := newMemoryPayments()
	store.err = errors.New("connection reset")
	provider := newTestProvider(store, nil)

	_, err := provider.GetCurrentLimits(context.Background(), "org-1")
	assert.EqualError(t, err, "connection reset")

	store.err = nil
	_, err = provider.GetCurrentLimits(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.lookups)
}
