package workspace

import (
	"context"

	"github.com/platinummonkey/gatehouse/pkg/auth"
	"github.com/platinummonkey/gatehouse/pkg/contextkeys"
	"github.com/platinummonkey/gatehouse/pkg/observability"
	"github.com/platinummonkey/gatehouse/pkg/rbac"
)

// RequestContext bundles everything resolved for one authenticated request
type RequestContext struct {
	Principal     *auth.Principal
	Workspace     *Keeper
	View          *ActiveView
	Checker       *rbac.Checker
	CorrelationID string
}

// Options carries the process-wide collaborators of a RequestContext
type Options struct {
	Store        rbac.Store
	SkipSecurity bool
	Logger       *observability.Logger
	Metrics      *observability.Metrics
}

// NewRequestContext creates the request-scoped state for principal. A nil
// keeper or view is replaced with an empty one.
func NewRequestContext(ctx context.Context, principal *auth.Principal, keeper *Keeper, view *ActiveView, opts Options) *RequestContext {
	if keeper == nil {
		keeper = &Keeper{}
	}
	if view == nil {
		view = NewActiveView()
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.FromContext(ctx)
	}

	return &RequestContext{
		Principal: principal,
		Workspace: keeper,
		View:      view,
		Checker: rbac.NewChecker(rbac.CheckerConfig{
			UserID:       principal.ID,
			Store:        opts.Store,
			Workspace:    keeper,
			View:         view,
			SkipSecurity: opts.SkipSecurity,
			Logger:       logger,
			Metrics:      opts.Metrics,
		}),
		CorrelationID: observability.GetCorrelationID(ctx),
	}
}

// WithRequestContext stores rc in ctx
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, contextkeys.RequestContextKey, rc)
}

// FromContext returns the request context stored in ctx
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(contextkeys.RequestContextKey).(*RequestContext)
	return rc, ok && rc != nil
}
