// Package auth turns bearer tokens into principals.
//
// # Overview
//
// SessionCache is the process-wide token cache. Each entry remembers the
// principal and when the identity provider last confirmed the token:
//
//	cache := auth.NewSessionCache(auth.SessionConfig{
//		Verifier:    verifier,
//		Provisioner: auth.NewProvisioner(users, rbacStore, logger),
//		Mirror:      auth.NewRedisMirror(redisClient, time.Hour),
//	})
//	principal, err := cache.Resolve(ctx, token)
//
// A cached principal is served without a provider call for 10 minutes when
// its email is verified and for 10 seconds otherwise, so a user confirming
// their email is picked up quickly. Concurrent refreshes of one token share
// a single provider call (golang.org/x/sync/singleflight). A failed call is
// retried up to three times with a fixed delay before the request is
// rejected with a *VerificationError, which matches ErrUnauthenticated.
//
// # Sweeping
//
// Sweep decodes every cached token's exp claim and drops entries that have
// expired or cannot be decoded. Calls are cheap: real work happens at most
// once per interval and overlapping calls return immediately. Resolve
// triggers it in the background and Sweeper drives it from a cron schedule.
//
// # Provisioning
//
// Provisioner matches verified claims to a stored user by external id, then
// by email. An email match only gains the new external id when the provider
// reports the email as verified; otherwise ErrEmailNotVerified is returned.
// Users with no organization receive a demo workspace built by
// NewDefaultWorkspace.
//
// # Security Considerations
//
// Raw tokens never reach logs or Redis: both use HashToken.
package auth
