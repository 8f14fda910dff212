package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/gatehouse/pkg/billing"
	"github.com/platinummonkey/gatehouse/pkg/httputil"
	"github.com/platinummonkey/gatehouse/pkg/limits"
	"github.com/platinummonkey/gatehouse/pkg/middleware"
	"github.com/platinummonkey/gatehouse/pkg/observability"
	"github.com/platinummonkey/gatehouse/pkg/rbac"
	"github.com/platinummonkey/gatehouse/pkg/workspace"
)

// Store resolves workspaces and serves the grants permission checks read
type Store interface {
	rbac.Store
	workspace.Loader
}

// PaymentSaver records payments. Implementations must drop any cached
// limits of the payment's organization.
type PaymentSaver interface {
	SavePayment(ctx context.Context, p *billing.Payment) error
}

// Config wires the API to its collaborators
type Config struct {
	Sessions     middleware.Sessions
	Store        Store
	Limits       *limits.Checker
	Payments     PaymentSaver
	SkipSecurity bool

	// MaxBodyBytes caps request bodies, 1 MiB when zero
	MaxBodyBytes int64

	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// Server represents our API server
type Server struct {
	router *mux.Router
	logger *observability.Logger
}

// NewServer creates a new API server with every route registered
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	s := &Server{
		router: mux.NewRouter(),
		logger: cfg.Logger,
	}
	s.setupRoutes(cfg)
	return s
}

func (s *Server) setupRoutes(cfg Config) {
	s.router.Use(
		httputil.RecoveryMiddleware,
		middleware.CorrelationID(cfg.Logger),
		httputil.LoggingMiddleware,
		observability.HTTPMetricsMiddleware(cfg.Metrics, routeName),
		httputil.MaxBytesMiddleware(cfg.MaxBodyBytes),
	)

	authMW := middleware.NewAuthMiddleware(cfg.Sessions, cfg.SkipSecurity)
	workspaceMW := middleware.NewWorkspaceMiddleware(cfg.Store, workspace.Options{
		Store:        cfg.Store,
		SkipSecurity: cfg.SkipSecurity,
		Logger:       cfg.Logger,
		Metrics:      cfg.Metrics,
	})

	secured := s.router.NewRoute().Subrouter()
	secured.Use(authMW.Handler)
	NewIdentityHandlers(authMW).RegisterRoutes(secured)

	org := secured.PathPrefix("/organizations/{" + middleware.OrganizationCodeVar + "}").Subrouter()
	org.Use(workspaceMW.Handler)
	NewPermissionHandlers(cfg.Store).RegisterRoutes(org)
	NewLimitsHandlers(cfg.Limits, cfg.Payments).RegisterRoutes(org)
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routeName labels metrics with the route template instead of the raw path
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
