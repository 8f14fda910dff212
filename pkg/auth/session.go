package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/gatehouse/pkg/async"
	"github.com/platinummonkey/gatehouse/pkg/observability"
)

// Default session cache tuning
const (
	DefaultVerifiedRefresh   = 10 * time.Minute
	DefaultUnverifiedRefresh = 10 * time.Second
	DefaultVerifyAttempts    = 3
	DefaultVerifyDelay       = 500 * time.Millisecond
	DefaultVerifyTimeout     = 5 * time.Second
	DefaultSweepInterval     = 60 * time.Second
)

// PrincipalProvisioner maps verified claims to a local principal
type PrincipalProvisioner interface {
	Provision(ctx context.Context, claims *Claims) (*Principal, error)
}

// SessionConfig configures a SessionCache
type SessionConfig struct {
	Verifier    Verifier
	Provisioner PrincipalProvisioner

	// Mirror is an optional second tier shared between replicas
	Mirror SessionMirror

	VerifiedRefresh   time.Duration
	UnverifiedRefresh time.Duration
	VerifyAttempts    int
	VerifyDelay       time.Duration
	VerifyTimeout     time.Duration
	SweepInterval     time.Duration

	// SkipSecurity resolves every request to the local development user
	SkipSecurity bool

	Logger  *observability.Logger
	Metrics *observability.Metrics

	// Clock defaults to time.Now
	Clock func() time.Time
}

type session struct {
	principal  *Principal
	verifiedAt time.Time
	expiresAt  time.Time // zero when the token carries no decodable expiry
}

// SessionCache maps bearer tokens to verified principals. It is shared by
// every request for the lifetime of the process.
type SessionCache struct {
	cfg     SessionConfig
	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
	now     func() time.Time

	sessions sync.Map // token -> *session
	flights  singleflight.Group

	lastSwept atomic.Int64
	sweeping  atomic.Bool
}

// NewSessionCache creates a cache. Zero durations and attempts fall back to
// the package defaults.
func NewSessionCache(cfg SessionConfig) *SessionCache {
	if cfg.VerifiedRefresh <= 0 {
		cfg.VerifiedRefresh = DefaultVerifiedRefresh
	}
	if cfg.UnverifiedRefresh <= 0 {
		cfg.UnverifiedRefresh = DefaultUnverifiedRefresh
	}
	if cfg.VerifyAttempts <= 0 {
		cfg.VerifyAttempts = DefaultVerifyAttempts
	}
	if cfg.VerifyDelay < 0 {
		cfg.VerifyDelay = 0
	}
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = DefaultVerifyTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.SkipSecurity {
		cfg.Verifier = LocalVerifier{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	c := &SessionCache{
		cfg:     cfg,
		logger:  logger.WithField("component", "session_cache"),
		metrics: cfg.Metrics,
		tracer:  observability.Tracer("gatehouse/auth"),
		now:     cfg.Clock,
	}
	c.lastSwept.Store(c.now().UnixNano())
	return c
}

// Resolve returns the principal for token, verifying it with the identity
// provider when no fresh cached session exists.
func (c *SessionCache) Resolve(ctx context.Context, token string) (*Principal, error) {
	if c.cfg.SkipSecurity {
		token = LocalSessionToken
	}
	if token == "" {
		return nil, ErrMissingToken
	}

	c.TriggerSweep(ctx)

	if s, ok := c.load(token); ok {
		if c.fresh(s) {
			c.metrics.RecordSessionLookup("hit")
			return s.principal, nil
		}
		c.metrics.RecordSessionLookup("stale")
	} else {
		c.metrics.RecordSessionLookup("miss")
	}

	return c.Refresh(ctx, token)
}

// Refresh verifies token and stores the result. Concurrent calls for the
// same token share one verification; callers for other tokens are not
// blocked. A caller whose ctx ends stops waiting, the shared verification
// carries on for the others.
func (c *SessionCache) Refresh(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	work := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(token, func() (interface{}, error) {
		return c.refresh(work, token)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Principal), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *SessionCache) refresh(ctx context.Context, token string) (*Principal, error) {
	// a caller that queued behind a finished flight finds the result here
	if s, ok := c.load(token); ok && c.fresh(s) {
		return s.principal, nil
	}

	if p, ok := c.fromMirror(ctx, token); ok {
		return p, nil
	}

	claims, err := c.verify(ctx, token)
	if err != nil {
		return nil, err
	}

	p, err := c.cfg.Provisioner.Provision(ctx, claims)
	if err != nil {
		c.logger.WithError(err).
			WithField("token_hash", shortHash(token)).
			Warn("failed to provision principal")
		return nil, err
	}

	s := &session{
		principal:  p,
		verifiedAt: c.now(),
		expiresAt:  expiryOrZero(token),
	}
	c.sessions.Store(token, s)

	if c.cfg.Mirror != nil {
		if err := c.cfg.Mirror.Save(ctx, token, s.principal, s.verifiedAt, s.expiresAt); err != nil {
			c.logger.WithError(err).Warn("failed to mirror session")
		}
	}

	return p, nil
}

func (c *SessionCache) fromMirror(ctx context.Context, token string) (*Principal, bool) {
	if c.cfg.Mirror == nil {
		return nil, false
	}

	p, verifiedAt, err := c.cfg.Mirror.Load(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			c.logger.WithError(err).Warn("session mirror lookup failed")
		}
		return nil, false
	}

	s := &session{principal: p, verifiedAt: verifiedAt, expiresAt: expiryOrZero(token)}
	if !c.fresh(s) {
		return nil, false
	}

	c.sessions.Store(token, s)
	c.metrics.RecordSessionLookup("mirror")
	return p, true
}

func (c *SessionCache) verify(ctx context.Context, token string) (*Claims, error) {
	ctx, span := c.tracer.Start(ctx, "auth.verify",
		trace.WithAttributes(attribute.String("token.hash", shortHash(token))))
	defer span.End()
	logger := observability.UpdateLoggerWithTraceContext(ctx, c.logger).WithField("token_hash", shortHash(token))

	start := time.Now()
	attempts := 0
	var lastErr error

	for attempts < c.cfg.VerifyAttempts {
		if attempts > 0 && c.cfg.VerifyDelay > 0 {
			timer := time.NewTimer(c.cfg.VerifyDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				lastErr = ctx.Err()
			}
			if ctx.Err() != nil {
				break
			}
		}

		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.VerifyTimeout)
		claims, err := c.cfg.Verifier.Verify(attemptCtx, token)
		cancel()

		if err == nil {
			span.SetAttributes(attribute.Int("verify.attempts", attempts))
			c.metrics.RecordVerification("success", attempts, time.Since(start))
			return claims, nil
		}

		lastErr = err
		logger.WithError(err).
			WithField("attempt", attempts).
			Debug("identity verification attempt failed")
	}

	verr := &VerificationError{Attempts: attempts, Err: lastErr}
	span.RecordError(verr)
	span.SetStatus(codes.Error, "verification failed")
	c.metrics.RecordVerification("failure", attempts, time.Since(start))
	logger.WithError(lastErr).
		WithField("attempts", attempts).
		Warn("identity verification failed")

	return nil, verr
}

func (c *SessionCache) load(token string) (*session, bool) {
	v, ok := c.sessions.Load(token)
	if !ok {
		return nil, false
	}
	return v.(*session), true
}

// fresh reports whether s may be served without asking the identity
// provider again. Tokens past their decoded expiry are never fresh.
func (c *SessionCache) fresh(s *session) bool {
	now := c.now()
	if !s.expiresAt.IsZero() && !now.Before(s.expiresAt) {
		return false
	}

	window := c.cfg.UnverifiedRefresh
	if s.principal.EmailVerified {
		window = c.cfg.VerifiedRefresh
	}
	return now.Sub(s.verifiedAt) < window
}

// Forget drops the cached session for token
func (c *SessionCache) Forget(ctx context.Context, token string) {
	c.sessions.Delete(token)
	if c.cfg.Mirror != nil {
		if err := c.cfg.Mirror.Delete(ctx, token); err != nil {
			c.logger.WithError(err).Warn("failed to delete mirrored session")
		}
	}
}

// Len returns the number of cached sessions
func (c *SessionCache) Len() int {
	n := 0
	c.sessions.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// TriggerSweep starts a background sweep when one is due. It never blocks.
func (c *SessionCache) TriggerSweep(ctx context.Context) {
	now := c.now()
	if !c.claimSweep(now) {
		return
	}
	async.SafeGoNoError(context.WithoutCancel(ctx), c.cfg.SweepInterval, "session sweep", func(ctx context.Context) {
		c.sweep(ctx, now)
	})
}

func expiryOrZero(token string) time.Time {
	exp, err := TokenExpiry(token)
	if err != nil {
		return time.Time{}
	}
	return exp
}
