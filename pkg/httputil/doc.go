// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteBadRequest(w, "Invalid input")
//
// WriteProblem turns the typed errors of the core into responses:
//
//	auth.ErrUnauthenticated       401
//	*rbac.NoPermissionError       403
//	*rbac.NotFoundError           404
//	*limits.QuotaExceededError    402
//	anything else                 500, logged, message hidden
//
// # Request Parsing
//
//	var req CheckRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RecoveryMiddleware,
//		httputil.LoggingMiddleware,
//	)(router)
package httputil
