// Package middleware provides the HTTP middleware in front of the core.
//
// # Ordering
//
// Middleware has strict ordering dependencies (outer to inner):
//  1. CorrelationID - tags the request and installs the request logger
//  2. AuthMiddleware - resolves the bearer token to a principal
//  3. WorkspaceMiddleware - loads organization/project from route variables,
//     captures the X-Lumeer-View-Id header and builds the request context
//  4. RequireRole / EnforceLimit - per-route authorization and plan checks
//
// Example:
//
//	api := router.PathPrefix("/organizations/{organizationCode}").Subrouter()
//	api.Use(middleware.CorrelationID(logger))
//	api.Use(authMiddleware.Handler)
//	api.Use(workspaceMiddleware.Handler)
//	api.Handle("/projects", middleware.EnforceLimit(checker, limits.KindProjects)(createProject)).
//		Methods(http.MethodPost)
//
// RequireRole and EnforceLimit answer with 500 when no request context is
// present, which means WorkspaceMiddleware did not run.
package middleware
