/*
Package workspace holds the per-request state of an authenticated call: the
organization and project it addresses, the view it acts through, and the
permission checker built over them.

A Keeper is loaded from the organization and project codes of a route:

	keeper, err := workspace.Load(ctx, store, "ACME", "PRJ1")

The active view can be set once per request. Later calls are ignored:

	view := workspace.NewActiveView()
	view.SetViewID("v1")
	view.SetViewID("v2") // no effect

NewRequestContext ties these together with the principal and stores the
result on the request context for handlers to retrieve with FromContext.
*/
package workspace
