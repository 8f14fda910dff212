// Package api exposes the gatehouse HTTP surface.
//
// Every route except the health probes requires a bearer token. Routes under
// /organizations/{organizationCode} additionally resolve the organization,
// the optional project and the X-Lumeer-View-Id header into a
// workspace.RequestContext, so handlers can ask its rbac.Checker questions
// about the caller.
//
// Routes:
//
//	GET  /whoami
//	POST /logout
//	GET  /organizations/{organizationCode}/permissions
//	POST /organizations/{organizationCode}/permissions/check
//	GET  /organizations/{organizationCode}/projects/{projectCode}/permissions
//	POST /organizations/{organizationCode}/projects/{projectCode}/permissions/check
//	GET  /organizations/{organizationCode}/limits
//	POST /organizations/{organizationCode}/limits/check
//	GET  /organizations/{organizationCode}/limits/{kind}
//	PUT  /organizations/{organizationCode}/payments
//
// Errors are written by httputil.WriteProblem: 401 for failed
// authentication, 403 for missing roles, 404 for unknown workspaces and 402
// for exceeded plan limits.
package api
