package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatehouse/pkg/observability"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// signedToken returns an HS256 JWT for subject expiring at exp
func signedToken(t *testing.T, subject string, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

// longLivedToken expires a day after the fake clock's epoch
func longLivedToken(t *testing.T, subject string) string {
	return signedToken(t, subject, epoch.Add(24*time.Hour))
}

// countingVerifier answers with claims keyed by token. failures makes the
// first n calls fail; block, when set, holds every call until closed.
type countingVerifier struct {
	calls    atomic.Int32
	failures atomic.Int32
	claims   map[string]*Claims
	verified bool
	block    chan struct{}
	started  chan struct{}
	once     sync.Once
}

func newCountingVerifier(verified bool) *countingVerifier {
	return &countingVerifier{claims: map[string]*Claims{}, verified: verified}
}

func (v *countingVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	v.calls.Add(1)
	if v.started != nil {
		v.once.Do(func() { close(v.started) })
	}
	if v.block != nil {
		select {
		case <-v.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if v.failures.Load() > 0 {
		v.failures.Add(-1)
		return nil, errors.New("identity provider unavailable")
	}
	if c, ok := v.claims[token]; ok {
		return c, nil
	}
	return &Claims{
		Subject:       "auth0|" + shortHash(token),
		Email:         "user@example.com",
		Name:          "User",
		EmailVerified: v.verified,
	}, nil
}

// echoProvisioner turns claims straight into a principal
type echoProvisioner struct {
	calls atomic.Int32
	err   error
}

func (p *echoProvisioner) Provision(ctx context.Context, claims *Claims) (*Principal, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return &Principal{
		ID:            "user-" + claims.Subject,
		AuthIDs:       []string{claims.Subject},
		Email:         claims.Email,
		Name:          claims.Name,
		EmailVerified: claims.EmailVerified,
	}, nil
}

func newTestCache(v Verifier, clock *fakeClock, opts ...func(*SessionConfig)) *SessionCache {
	cfg := SessionConfig{
		Verifier:    v,
		Provisioner: &echoProvisioner{},
		VerifyDelay: time.Millisecond,
		Logger:      observability.NopLogger(),
		Clock:       clock.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewSessionCache(cfg)
}
