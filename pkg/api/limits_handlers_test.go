package api

import (
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatehouse/pkg/billing"
	"github.com/platinummonkey/gatehouse/pkg/httputil"
	"github.com/platinummonkey/gatehouse/pkg/limits"
)

func int64Ptr(v int64) *int64 { return &v }

func TestGetLimits(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/organizations/ACME/limits", "alice-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[limits.ServiceLimits](t, w)
	assert.Equal(t, billing.FreeLimits(), got)

	w = f.do(t, http.MethodGet, "/organizations/ACME/limits", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCheckLimit(t *testing.T) {
	f := newFixture(t)
	path := "/organizations/ACME/limits/check"

	tests := []struct {
		name   string
		req    LimitCheckRequest
		status int
	}{
		{"project fits", LimitCheckRequest{Kind: limits.KindProjects, Current: int64Ptr(0)}, http.StatusOK},
		{"project over plan", LimitCheckRequest{Kind: limits.KindProjects, Current: int64Ptr(1)}, http.StatusPaymentRequired},
		{"counted documents reach ceiling", LimitCheckRequest{Kind: limits.KindDocuments, Requested: 50}, http.StatusOK},
		{"counted documents pass ceiling", LimitCheckRequest{Kind: limits.KindDocuments, Requested: 51}, http.StatusPaymentRequired},
		{"counted collections at ceiling", LimitCheckRequest{Kind: limits.KindCollections}, http.StatusPaymentRequired},
		{"unknown kind", LimitCheckRequest{Kind: "dashboards"}, http.StatusBadRequest},
		{"negative current", LimitCheckRequest{Kind: limits.KindDocuments, Requested: 500, Current: int64Ptr(-1000)}, http.StatusBadRequest},
		{"negative request", LimitCheckRequest{Kind: limits.KindDocuments, Requested: -1}, http.StatusBadRequest},
		{"huge request", LimitCheckRequest{Kind: limits.KindDocuments, Requested: math.MaxInt64, Current: int64Ptr(1)}, http.StatusPaymentRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, path, "alice-token", tt.req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestCheckLimitResponses(t *testing.T) {
	f := newFixture(t)
	path := "/organizations/ACME/limits/check"

	w := f.do(t, http.MethodPost, path, "alice-token", LimitCheckRequest{Kind: limits.KindProjects, Current: int64Ptr(0)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, LimitCheckResponse{Allowed: true, Kind: limits.KindProjects, Limit: 1}, decode[LimitCheckResponse](t, w))

	w = f.do(t, http.MethodPost, path, "alice-token", LimitCheckRequest{
		Kind:      limits.KindRules,
		ScopeID:   "col-orders",
		Requested: 1,
		Current:   int64Ptr(1),
	})
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	problem := decode[httputil.ErrorResponse](t, w)
	assert.Equal(t, "service_limits_exceeded", problem.Code)
	assert.Equal(t, "collection:col-orders", problem.Details["resource"])
	assert.EqualValues(t, 1, problem.Details["limit"])
}

func TestCheckKind(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"project fits", "/organizations/ACME/limits/projects?current=0", http.StatusOK},
		{"project over plan", "/organizations/ACME/limits/projects?current=1", http.StatusPaymentRequired},
		{"counted documents", "/organizations/ACME/limits/documents", http.StatusOK},
		{"counted collections", "/organizations/ACME/limits/collections", http.StatusPaymentRequired},
		{"bad count", "/organizations/ACME/limits/projects?current=many", http.StatusBadRequest},
		{"unknown kind", "/organizations/ACME/limits/dashboards", http.StatusBadRequest},
		{"negative count", "/organizations/ACME/limits/projects?current=-5", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodGet, tt.path, "alice-token", nil)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestSavePayment(t *testing.T) {
	f := newFixture(t)
	path := "/organizations/ACME/payments"
	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	body := map[string]any{
		"service_level": limits.ServiceLevelBasic,
		"state":         billing.PaymentStatePaid,
		"users":         10,
		"valid_from":    from,
		"valid_until":   from.AddDate(1, 0, 0),
	}

	w := f.do(t, http.MethodPut, path, "alice-token", body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.payments.saved)

	w = f.do(t, http.MethodPut, path, "bob-token", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, f.payments.saved, 1)

	saved := f.payments.saved[0]
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "org-1", saved.OrganizationID)
	assert.Equal(t, limits.ServiceLevelBasic, saved.ServiceLevel)
	assert.Equal(t, 10, saved.Users)
	assert.Equal(t, saved.ID, decode[billing.Payment](t, w).ID)
}

func TestSavePaymentValidation(t *testing.T) {
	f := newFixture(t)
	path := "/organizations/ACME/payments"
	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	w := f.do(t, http.MethodPut, path, "bob-token", map[string]any{
		"service_level": limits.ServiceLevelBasic,
		"valid_from":    from,
		"valid_until":   from.AddDate(0, 1, 0),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPut, path, "bob-token", map[string]any{
		"service_level": limits.ServiceLevelBasic,
		"state":         billing.PaymentStatePaid,
		"valid_from":    from,
		"valid_until":   from.AddDate(0, -1, 0),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.payments.saved)
}
