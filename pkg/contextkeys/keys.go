// Package contextkeys provides centralized context key definitions
//
// All context keys shared between packages are defined here. This prevents
// typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//
//	ctx = context.WithValue(ctx, contextkeys.PrincipalKey, principal)
//	principal, _ := ctx.Value(contextkeys.PrincipalKey).(*auth.Principal)
package contextkeys

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains *auth.Principal
	// Set by: middleware.Authenticate (pkg/middleware/auth.go)
	// Required by: every handler behind authentication
	PrincipalKey Key = "principal"

	// TokenKey contains the raw bearer token string
	// Set by: middleware.Authenticate
	// Used by: logout, which drops the token from the session cache
	TokenKey Key = "bearer_token"

	// RequestContextKey contains *workspace.RequestContext
	// Set by: middleware.Workspace (pkg/middleware/workspace.go)
	// Required by: handlers that authorize against a resource
	RequestContextKey Key = "request_context"
)
