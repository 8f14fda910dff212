package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/platinummonkey/gatehouse/pkg/auth"
	"github.com/platinummonkey/gatehouse/pkg/limits"
	"github.com/platinummonkey/gatehouse/pkg/observability"
	"github.com/platinummonkey/gatehouse/pkg/rbac"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data any) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteErrorMessage(w, status, err.Error())
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteJSON(w, http.StatusUnauthorized, ErrorResponse{Error: message, Code: "unauthenticated"})
}

// StatusFor maps a core error to its HTTP status
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case auth.IsUnauthenticated(err):
		return http.StatusUnauthorized
	case rbac.IsNoPermission(err):
		return http.StatusForbidden
	case rbac.IsNotFound(err):
		return http.StatusNotFound
	case limits.IsQuotaExceeded(err):
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}

// WriteProblem writes err with the status StatusFor assigns it. Server
// errors are logged and replaced with a generic message.
func WriteProblem(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)

	switch status {
	case http.StatusUnauthorized:
		WriteUnauthorized(w, err.Error())
	case http.StatusForbidden:
		WriteJSON(w, status, ErrorResponse{Error: err.Error(), Code: "forbidden"})
	case http.StatusNotFound:
		WriteJSON(w, status, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case http.StatusPaymentRequired:
		WriteJSON(w, status, quotaResponse(err))
	default:
		observability.FromContext(r.Context()).
			WithFields(map[string]any{"method": r.Method, "path": r.URL.Path}).
			WithError(err).
			Error("request failed")
		WriteJSON(w, status, ErrorResponse{Error: "internal server error", Code: "internal"})
	}
}

func quotaResponse(err error) ErrorResponse {
	var qe *limits.QuotaExceededError
	errors.As(err, &qe)

	details := map[string]any{
		"kind":      qe.Kind,
		"limit":     qe.Limit,
		"current":   qe.Current,
		"requested": qe.Requested,
	}
	if qe.Resource != nil {
		details["resource"] = qe.Resource.String()
	}
	return ErrorResponse{
		Error:   fmt.Sprintf("%s limit of your plan reached, please upgrade", qe.Kind),
		Code:    "service_limits_exceeded",
		Details: details,
	}
}
