package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/platinummonkey/gatehouse/pkg/observability"
)

const (
	// CorrelationIDHeader carries the id that ties client and server logs
	CorrelationIDHeader = "X-Lumeer-Correlation-Id"

	// ViewIDHeader names the view a request acts through
	ViewIDHeader = "X-Lumeer-View-Id"
)

// CorrelationID tags each request with a correlation id, taken from the
// request header or generated, and installs a request logger carrying it
func CorrelationID(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(CorrelationIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(CorrelationIDHeader, id)

			ctx := observability.WithCorrelationID(r.Context(), id)
			if logger != nil {
				ctx = observability.WithLogger(ctx, logger)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
