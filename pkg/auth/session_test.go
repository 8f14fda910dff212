package auth

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

	"github.com/platinummonkey/gatehouse/pkg/observability"
)

func TestResolve_MissingToken(t *testing.T) {
	cache := newTestCache(newCountingVerifier(true), newFakeClock())

	_, err := cache.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolve_CachesPrincipal(t *testing.T) {
	v := newCountingVerifier(true)
	cache := newTestCache(v, newFakeClock())
	token := longLivedToken(t, "u1")

	first, err := cache.Resolve(context.Background(), token)
	require.NoError(t, err)
	second, err := cache.Resolve(context.Background(), token)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, v.calls.Load())
	assert.Equal(t, 1, cache.Len())
}

func TestResolve_SingleFlight(t *testing.T) {
	v := newCountingVerifier(true)
	v.block = make(chan struct{})
	v.started = make(chan struct{})
	cache := newTestCache(v, newFakeClock())
	token := longLivedToken(t, "u1")

	const callers = 50
	results := make([]*Principal, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Resolve(context.Background(), token)
		}(i)
	}

	<-v.started
	time.Sleep(50 * time.Millisecond)
	close(v.block)
	wg.Wait()

	assert.EqualValues(t, 1, v.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestResolve_SingleFlightSharesFailure(t *testing.T) {
	v := newCountingVerifier(true)
	v.block = make(chan struct{})
	v.started = make(chan struct{})
	v.failures.Store(100)
	cache := newTestCache(v, newFakeClock(), func(cfg *SessionConfig) {
		cfg.VerifyAttempts = 1
	})
	token := longLivedToken(t, "u1")

	const callers = 10
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cache.Resolve(context.Background(), token)
		}(i)
	}

	<-v.started
	time.Sleep(50 * time.Millisecond)
	close(v.block)
	wg.Wait()

	for _, err := range errs {
		var verr *VerificationError
		require.ErrorAs(t, err, &verr)
	}
	// late arrivals may start a second flight, never one per caller
	assert.Less(t, v.calls.Load(), int32(callers))
}

func TestResolve_DifferentTokensDoNotBlock(t *testing.T) {
	slow := longLivedToken(t, "slow")
	fast := longLivedToken(t, "fast")

	release := make(chan struct{})
	started := make(chan struct{})
	v := VerifierFunc(func(ctx context.Context, token string) (*Claims, error) {
		if token == slow {
			close(started)
			<-release
		}
		return &Claims{Subject: shortHash(token), Email: "x@example.com", EmailVerified: true}, nil
	})
	cache := newTestCache(v, newFakeClock())

	done := make(chan error, 1)
	go func() {
		_, err := cache.Resolve(context.Background(), slow)
		done <- err
	}()
	<-started

	p, err := cache.Resolve(context.Background(), fast)
	require.NoError(t, err)
	assert.Equal(t, "user-"+shortHash(fast), p.ID)

	close(release)
	require.NoError(t, <-done)
}

func TestResolve_FreshnessWindows(t *testing.T) {
	tests := []struct {
		name     string
		verified bool
		window   time.Duration
	}{
		{name: "verified email", verified: true, window: 10 * time.Minute},
		{name: "unverified email", verified: false, window: 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newCountingVerifier(tt.verified)
			clock := newFakeClock()
			cache := newTestCache(v, clock)
			token := longLivedToken(t, "u1")

			_, err := cache.Resolve(context.Background(), token)
			require.NoError(t, err)

			clock.Advance(tt.window - time.Nanosecond)
			_, err = cache.Resolve(context.Background(), token)
			require.NoError(t, err)
			assert.EqualValues(t, 1, v.calls.Load(), "still fresh just inside the window")

			clock.Advance(time.Nanosecond)
			_, err = cache.Resolve(context.Background(), token)
			require.NoError(t, err)
			assert.EqualValues(t, 2, v.calls.Load(), "re-verified once the window elapsed")
		})
	}
}

func TestResolve_ExpiredTokenIsNeverFresh(t *testing.T) {
	v := newCountingVerifier(true)
	clock := newFakeClock()
	cache := newTestCache(v, clock)
	token := signedToken(t, "u1", epoch.Add(time.Minute))

	_, err := cache.Resolve(context.Background(), token)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = cache.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v.calls.Load())
}

func TestRefresh_RetriesTransientFailures(t *testing.T) {
	v := newCountingVerifier(true)
	v.failures.Store(2)
	cache := newTestCache(v, newFakeClock())

	p, err := cache.Resolve(context.Background(), longLivedToken(t, "u1"))
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.EqualValues(t, 3, v.calls.Load())
}

func TestRefresh_GivesUpAfterAttempts(t *testing.T) {
	v := newCountingVerifier(true)
	v.failures.Store(10)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	cache := newTestCache(v, newFakeClock(), func(cfg *SessionConfig) {
		cfg.Metrics = metrics
	})
	token := longLivedToken(t, "u1")

	_, err := cache.Resolve(context.Background(), token)

	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 3, verr.Attempts)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.EqualValues(t, 3, v.calls.Load())
	assert.Equal(t, 0, cache.Len(), "failures are not cached")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.VerificationsTotal.WithLabelValues("failure")))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.VerificationAttemptsTotal))

	v.failures.Store(0)
	_, err = cache.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.EqualValues(t, 4, v.calls.Load())
}

func TestRefresh_StopsWaitingWhenContextEnds(t *testing.T) {
	v := newCountingVerifier(true)
	v.block = make(chan struct{})
	defer close(v.block)
	cache := newTestCache(v, newFakeClock())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := cache.Resolve(ctx, longLivedToken(t, "u1"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRefresh_ProvisioningFailure(t *testing.T) {
	boom := errors.New("database unavailable")
	cache := newTestCache(newCountingVerifier(true), newFakeClock(), func(cfg *SessionConfig) {
		cfg.Provisioner = &echoProvisioner{err: boom}
	})

	_, err := cache.Resolve(context.Background(), longLivedToken(t, "u1"))
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsUnauthenticated(err))
}

func TestResolve_SkipSecurity(t *testing.T) {
	v := newCountingVerifier(true)
	cache := newTestCache(v, newFakeClock(), func(cfg *SessionConfig) {
		cfg.SkipSecurity = true
	})

	p, err := cache.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, LocalEmail, p.Email)
	assert.True(t, p.HasAuthID(LocalAuthID))
	assert.EqualValues(t, 0, v.calls.Load(), "the configured verifier is bypassed")

	again, err := cache.Resolve(context.Background(), "anything")
	require.NoError(t, err)
	assert.Same(t, p, again)
}

func TestResolve_RecordsLookups(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	cache := newTestCache(newCountingVerifier(true), newFakeClock(), func(cfg *SessionConfig) {
		cfg.Metrics = metrics
	})
	token := longLivedToken(t, "u1")

	_, _ = cache.Resolve(context.Background(), token)
	_, _ = cache.Resolve(context.Background(), token)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SessionLookupsTotal.WithLabelValues("miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SessionLookupsTotal.WithLabelValues("hit")))
}

func TestForget(t *testing.T) {
	v := newCountingVerifier(true)
	cache := newTestCache(v, newFakeClock())
	token := longLivedToken(t, "u1")

	_, err := cache.Resolve(context.Background(), token)
	require.NoError(t, err)
	cache.Forget(context.Background(), token)
	assert.Equal(t, 0, cache.Len())

	_, err = cache.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v.calls.Load())
}
