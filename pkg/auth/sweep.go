package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/gatehouse/pkg/observability"
)

// SweepResult describes one Sweep call
type SweepResult struct {
	Ran     bool
	Evicted int
	Kept    int
}

// claimSweep takes the sweep slot for the current interval. Only one caller
// per interval gets true.
func (c *SessionCache) claimSweep(now time.Time) bool {
	last := c.lastSwept.Load()
	if now.UnixNano()-last < c.cfg.SweepInterval.Nanoseconds() {
		return false
	}
	return c.lastSwept.CompareAndSwap(last, now.UnixNano())
}

// Sweep evicts sessions whose token has expired or cannot be decoded. It is
// safe to call as often as you like: real work happens at most once per
// sweep interval, and a call that overlaps a running sweep returns at once.
// Resolve is never blocked by a sweep.
func (c *SessionCache) Sweep(ctx context.Context) SweepResult {
	now := c.now()
	if !c.claimSweep(now) {
		return SweepResult{}
	}
	return c.sweep(ctx, now)
}

func (c *SessionCache) sweep(ctx context.Context, now time.Time) SweepResult {
	if !c.sweeping.CompareAndSwap(false, true) {
		c.metrics.RecordSweep(false, 0)
		return SweepResult{}
	}
	defer c.sweeping.Store(false)

	result := SweepResult{Ran: true}
	c.sessions.Range(func(key, _ interface{}) bool {
		token := key.(string)
		if token == LocalSessionToken {
			result.Kept++
			return true
		}

		exp, err := TokenExpiry(token)
		if err == nil && now.Before(exp) {
			result.Kept++
			return true
		}

		c.sessions.Delete(token)
		result.Evicted++
		if c.cfg.Mirror != nil {
			if err := c.cfg.Mirror.Delete(ctx, token); err != nil {
				c.logger.WithError(err).Debug("failed to delete mirrored session")
			}
		}
		return true
	})

	c.metrics.RecordSweep(true, result.Evicted)
	c.metrics.SetSessionEntries(result.Kept)
	if result.Evicted > 0 {
		c.logger.WithField("evicted", result.Evicted).
			WithField("remaining", result.Kept).
			Info("evicted expired sessions")
	}
	return result
}

// Sweeper triggers SessionCache.Sweep on a cron schedule
type Sweeper struct {
	cron   *cron.Cron
	logger *observability.Logger
}

// NewSweeper schedules cache sweeps. schedule is a robfig/cron expression such
// as "@every 15s"; the cache itself still limits real work to one sweep per
// interval.
func NewSweeper(cache *SessionCache, schedule string, logger *observability.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		defer observability.RecoverPanic(logger, "session sweep")
		cache.Sweep(context.Background())
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	return &Sweeper{cron: c, logger: logger}, nil
}

// Start begins running the schedule in the background
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("session sweeper started")
}

// Stop halts the schedule and waits for a running sweep to finish or ctx
// to end
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
