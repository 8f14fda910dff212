package limits

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/gatehouse/pkg/async"
	"github.com/platinummonkey/gatehouse/pkg/observability"
	"github.com/platinummonkey/gatehouse/pkg/rbac"
)

const defaultNotifyTimeout = 30 * time.Second

// Intent describes a pending creation. ScopeID is the project for
// documents and the collection for rules and functions; it is ignored for
// organization-wide kinds.
type Intent struct {
	OrganizationID string
	Kind           Kind
	ScopeID        string
	Requested      int64
	Resource       *rbac.ResourceRef
}

// Config configures a Checker
type Config struct {
	Provider      Provider
	Usage         Usage
	SkipLimits    bool
	Notifier      Notifier
	NotifyTimeout time.Duration
	Logger        *observability.Logger
	Metrics       *observability.Metrics
}

// Checker admits or rejects resource creations against plan ceilings.
// It holds no per-call state and is safe for concurrent use.
type Checker struct {
	provider      Provider
	usage         Usage
	skip          bool
	notifier      Notifier
	notifyTimeout time.Duration
	logger        *observability.Logger
	metrics       *observability.Metrics
}

// NewChecker creates a limits checker
func NewChecker(cfg Config) *Checker {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	timeout := cfg.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &Checker{
		provider:      cfg.Provider,
		usage:         cfg.Usage,
		skip:          cfg.SkipLimits,
		notifier:      cfg.Notifier,
		notifyTimeout: timeout,
		logger:        logger,
		metrics:       cfg.Metrics,
	}
}

// CheckProjects checks whether one more project fits the organization
func (c *Checker) CheckProjects(ctx context.Context, organizationID string, current int64) error {
	return c.Check(ctx, Intent{OrganizationID: organizationID, Kind: KindProjects, Requested: 1}, current)
}

// CheckCollections checks whether one more collection fits the organization
func (c *Checker) CheckCollections(ctx context.Context, organizationID string, current int64) error {
	return c.Check(ctx, Intent{OrganizationID: organizationID, Kind: KindCollections, Requested: 1}, current)
}

// CheckDocument checks whether one more document fits
func (c *Checker) CheckDocument(ctx context.Context, organizationID string, current int64) error {
	return c.CheckDocuments(ctx, organizationID, current, 1)
}

// CheckDocuments checks whether a bulk creation of n documents fits
func (c *Checker) CheckDocuments(ctx context.Context, organizationID string, current, n int64) error {
	return c.Check(ctx, Intent{OrganizationID: organizationID, Kind: KindDocuments, Requested: n}, current)
}

// CheckUsers checks whether one more user fits the organization
func (c *Checker) CheckUsers(ctx context.Context, organizationID string, current int64) error {
	return c.Check(ctx, Intent{OrganizationID: organizationID, Kind: KindUsers, Requested: 1}, current)
}

// CheckRules checks whether n more rules fit a collection
func (c *Checker) CheckRules(ctx context.Context, organizationID, collectionID string, current, n int64) error {
	return c.Check(ctx, collectionIntent(organizationID, collectionID, KindRules, n), current)
}

// CheckFunctions checks whether n more functions fit a collection
func (c *Checker) CheckFunctions(ctx context.Context, organizationID, collectionID string, current, n int64) error {
	return c.Check(ctx, collectionIntent(organizationID, collectionID, KindFunctions, n), current)
}

func collectionIntent(organizationID, collectionID string, kind Kind, n int64) Intent {
	return Intent{
		OrganizationID: organizationID,
		Kind:           kind,
		ScopeID:        collectionID,
		Requested:      n,
		Resource:       &rbac.ResourceRef{Type: rbac.ResourceCollection, ID: collectionID},
	}
}

// Check evaluates intent against the current count
func (c *Checker) Check(ctx context.Context, intent Intent, current int64) error {
	if c.skip {
		return nil
	}
	if intent.Requested <= 0 {
		intent.Requested = 1
	}
	current = max(current, 0)

	limits, err := c.provider.GetCurrentLimits(ctx, intent.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to get service limits: %w", err)
	}

	limit := limits.Ceiling(intent.Kind)
	if !Exceeds(limit, current, intent.Requested) {
		return nil
	}

	qe := &QuotaExceededError{
		OrganizationID: intent.OrganizationID,
		Kind:           intent.Kind,
		Limit:          limit,
		Current:        current,
		Requested:      intent.Requested,
		Resource:       intent.Resource,
	}
	c.reject(ctx, qe)
	return qe
}

// Admit counts the current usage and checks intent against it
func (c *Checker) Admit(ctx context.Context, intent Intent) error {
	if c.skip {
		return nil
	}
	if c.usage == nil {
		return fmt.Errorf("no usage counter configured")
	}

	current, err := c.usage.Count(ctx, intent.Kind, intent.OrganizationID, intent.ScopeID)
	if err != nil {
		return err
	}
	return c.Check(ctx, intent, current)
}

// Limits returns the limits in force for an organization
func (c *Checker) Limits(ctx context.Context, organizationID string) (ServiceLimits, error) {
	return c.provider.GetCurrentLimits(ctx, organizationID)
}

func (c *Checker) reject(ctx context.Context, qe *QuotaExceededError) {
	c.metrics.RecordQuotaRejection(string(qe.Kind))
	c.logger.WithFields(map[string]any{
		"organization_id": qe.OrganizationID,
		"kind":            qe.Kind,
		"limit":           qe.Limit,
		"current":         qe.Current,
		"requested":       qe.Requested,
	}).Warn("service limit exceeded")

	if c.notifier == nil {
		return
	}
	async.SafeGo(observability.WithLogger(context.WithoutCancel(ctx), c.logger), c.notifyTimeout, "notify_limits_exceeded",
		func(ctx context.Context) error {
			return c.notifier.NotifyLimitsExceeded(ctx, qe.OrganizationID, qe)
		})
}
