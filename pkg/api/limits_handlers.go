package api

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/gatehouse/pkg/billing"
	"github.com/platinummonkey/gatehouse/pkg/httputil"
	"github.com/platinummonkey/gatehouse/pkg/limits"
	"github.com/platinummonkey/gatehouse/pkg/middleware"
	"github.com/platinummonkey/gatehouse/pkg/rbac"
)

// LimitCheckRequest asks whether Requested more items of Kind fit the plan.
// Without Current the usage is counted from the store.
type LimitCheckRequest struct {
	Kind      limits.Kind `json:"kind"`
	ScopeID   string      `json:"scope_id,omitempty"`
	Requested int64       `json:"requested"`
	Current   *int64      `json:"current,omitempty"`
}

// LimitCheckResponse is returned when the request fits the plan
type LimitCheckResponse struct {
	Allowed bool        `json:"allowed"`
	Kind    limits.Kind `json:"kind"`
	Limit   int         `json:"limit"`
}

// LimitsHandlers handles plan limits and payment HTTP requests
type LimitsHandlers struct {
	checker  *limits.Checker
	payments PaymentSaver
}

// NewLimitsHandlers creates a new LimitsHandlers. payments may be nil, in
// which case the payment route is not registered.
func NewLimitsHandlers(checker *limits.Checker, payments PaymentSaver) *LimitsHandlers {
	return &LimitsHandlers{checker: checker, payments: payments}
}

// RegisterRoutes registers limits routes on an organization router
func (h *LimitsHandlers) RegisterRoutes(router *mux.Router) {
	if h.checker == nil {
		return
	}
	readOrg := middleware.RequireRole(rbac.ResourceOrganization, rbac.RoleRead)
	manageOrg := middleware.RequireRole(rbac.ResourceOrganization, rbac.RoleManage)

	router.Handle("/limits", readOrg(http.HandlerFunc(h.GetLimits))).Methods(http.MethodGet)
	router.Handle("/limits/check", readOrg(http.HandlerFunc(h.CheckLimit))).Methods(http.MethodPost)
	router.Handle("/limits/{kind}", readOrg(http.HandlerFunc(h.CheckKind))).Methods(http.MethodGet)
	if h.payments != nil {
		router.Handle("/payments", manageOrg(http.HandlerFunc(h.SavePayment))).Methods(http.MethodPut)
	}
}

// GetLimits returns the limits in force for the route's organization
func (h *LimitsHandlers) GetLimits(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}
	org, err := rc.Workspace.RequireOrganization()
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	current, err := h.checker.Limits(r.Context(), org.ID)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	httputil.WriteSuccess(w, current)
}

// CheckLimit evaluates a LimitCheckRequest. An exceeded limit is answered
// with 402 Payment Required.
func (h *LimitsHandlers) CheckLimit(w http.ResponseWriter, r *http.Request) {
	var req LimitCheckRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	h.check(w, r, req)
}

// CheckKind answers whether one more item of the path's kind fits the plan.
// ?current= supplies the existing count, otherwise usage is counted.
func (h *LimitsHandlers) CheckKind(w http.ResponseWriter, r *http.Request) {
	kind, err := httputil.ParsePathString(r, "kind")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	req := LimitCheckRequest{
		Kind:      limits.Kind(kind),
		ScopeID:   httputil.ParseQueryString(r, "scope_id", ""),
		Requested: 1,
	}
	if r.URL.Query().Has("current") {
		current, err := httputil.ParseQueryInt64(r, "current", 0)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err)
			return
		}
		req.Current = &current
	}
	h.check(w, r, req)
}

func (h *LimitsHandlers) check(w http.ResponseWriter, r *http.Request, req LimitCheckRequest) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}
	org, err := rc.Workspace.RequireOrganization()
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	if !slices.Contains(limits.Kinds(), req.Kind) {
		httputil.WriteBadRequest(w, fmt.Sprintf("unknown limit kind: %q", req.Kind))
		return
	}
	if req.Requested < 0 || (req.Current != nil && *req.Current < 0) {
		httputil.WriteBadRequest(w, "counts must not be negative")
		return
	}

	intent := limits.Intent{
		OrganizationID: org.ID,
		Kind:           req.Kind,
		ScopeID:        req.ScopeID,
		Requested:      req.Requested,
	}
	if (req.Kind == limits.KindRules || req.Kind == limits.KindFunctions) && req.ScopeID != "" {
		intent.Resource = &rbac.ResourceRef{Type: rbac.ResourceCollection, ID: req.ScopeID}
	}

	if req.Current != nil {
		err = h.checker.Check(r.Context(), intent, *req.Current)
	} else {
		err = h.checker.Admit(r.Context(), intent)
	}
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	current, err := h.checker.Limits(r.Context(), org.ID)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	httputil.WriteSuccess(w, LimitCheckResponse{Allowed: true, Kind: req.Kind, Limit: current.Ceiling(req.Kind)})
}

// SavePayment records a payment for the route's organization
func (h *LimitsHandlers) SavePayment(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}
	org, err := rc.Workspace.RequireOrganization()
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	var payment billing.Payment
	if !httputil.ParseJSONOrError(w, r, &payment) {
		return
	}
	if payment.State == "" {
		httputil.WriteBadRequest(w, "payment state is required")
		return
	}
	if payment.ValidUntil.Before(payment.ValidFrom) {
		httputil.WriteBadRequest(w, "payment ends before it starts")
		return
	}
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	payment.OrganizationID = org.ID

	if err := h.payments.SavePayment(r.Context(), &payment); err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	httputil.WriteSuccess(w, payment)
}
