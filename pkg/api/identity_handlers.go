package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/gatehouse/pkg/auth"
	"github.com/platinummonkey/gatehouse/pkg/httputil"
	"github.com/platinummonkey/gatehouse/pkg/middleware"
)

// IdentityHandlers serves the caller's own session
type IdentityHandlers struct {
	auth *middleware.AuthMiddleware
}

// NewIdentityHandlers creates a new IdentityHandlers
func NewIdentityHandlers(authMW *middleware.AuthMiddleware) *IdentityHandlers {
	return &IdentityHandlers{auth: authMW}
}

// RegisterRoutes registers identity routes
func (h *IdentityHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/whoami", h.WhoAmI).Methods(http.MethodGet)
	router.HandleFunc("/logout", h.auth.Logout).Methods(http.MethodPost)
}

// WhoAmI returns the authenticated principal
func (h *IdentityHandlers) WhoAmI(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		httputil.WriteProblem(w, r, auth.ErrUnauthenticated)
		return
	}
	httputil.WriteSuccess(w, principal)
}
