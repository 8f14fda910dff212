package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Session cache metrics
	SessionLookupsTotal       *prometheus.CounterVec
	SessionEntries            prometheus.Gauge
	SessionSweepsTotal        *prometheus.CounterVec
	SessionEvictionsTotal     prometheus.Counter
	VerificationsTotal        *prometheus.CounterVec
	VerificationDuration      prometheus.Histogram
	VerificationAttemptsTotal prometheus.Counter

	// Authorization metrics
	PermissionChecksTotal *prometheus.CounterVec
	QuotaRejectionsTotal  *prometheus.CounterVec
	LimitsCacheTotal      *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gatehouse_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		SessionLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_session_cache_lookups_total",
				Help: "Session cache lookups by result (hit, stale, miss)",
			},
			[]string{"result"},
		),
		SessionEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gatehouse_session_cache_entries",
				Help: "Number of cached sessions",
			},
		),
		SessionSweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_session_sweeps_total",
				Help: "Session sweep triggers by outcome (run, skipped)",
			},
			[]string{"outcome"},
		),
		SessionEvictionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gatehouse_session_evictions_total",
				Help: "Sessions evicted because their token expired or was malformed",
			},
		),
		VerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_identity_verifications_total",
				Help: "Identity provider verifications by status",
			},
			[]string{"status"},
		),
		VerificationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gatehouse_identity_verification_duration_seconds",
				Help:    "Identity provider verification duration including retries",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		VerificationAttemptsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gatehouse_identity_verification_attempts_total",
				Help: "Individual calls made to the identity provider",
			},
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_permission_checks_total",
				Help: "Permission decisions by reason",
			},
			[]string{"outcome"},
		),
		QuotaRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_quota_rejections_total",
				Help: "Resource creations rejected by plan limits",
			},
			[]string{"kind"},
		),
		LimitsCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_limits_cache_lookups_total",
				Help: "Service limits cache lookups by result (hit, miss)",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SessionLookupsTotal,
		m.SessionEntries,
		m.SessionSweepsTotal,
		m.SessionEvictionsTotal,
		m.VerificationsTotal,
		m.VerificationDuration,
		m.VerificationAttemptsTotal,
		m.PermissionChecksTotal,
		m.QuotaRejectionsTotal,
		m.LimitsCacheTotal,
	)

	return m
}

// RecordSessionLookup counts a session cache lookup
func (m *Metrics) RecordSessionLookup(result string) {
	if m == nil {
		return
	}
	m.SessionLookupsTotal.WithLabelValues(result).Inc()
}

// SetSessionEntries reports the current session cache size
func (m *Metrics) SetSessionEntries(n int) {
	if m == nil {
		return
	}
	m.SessionEntries.Set(float64(n))
}

// RecordSweep counts a sweep trigger and the sessions it evicted
func (m *Metrics) RecordSweep(ran bool, evicted int) {
	if m == nil {
		return
	}
	if !ran {
		m.SessionSweepsTotal.WithLabelValues("skipped").Inc()
		return
	}
	m.SessionSweepsTotal.WithLabelValues("run").Inc()
	m.SessionEvictionsTotal.Add(float64(evicted))
}

// RecordVerification records one verification including all its attempts
func (m *Metrics) RecordVerification(status string, attempts int, duration time.Duration) {
	if m == nil {
		return
	}
	m.VerificationsTotal.WithLabelValues(status).Inc()
	m.VerificationAttemptsTotal.Add(float64(attempts))
	m.VerificationDuration.Observe(duration.Seconds())
}

// RecordPermissionCheck counts a permission decision
func (m *Metrics) RecordPermissionCheck(outcome string) {
	if m == nil {
		return
	}
	m.PermissionChecksTotal.WithLabelValues(outcome).Inc()
}

// RecordQuotaRejection counts a rejected resource creation
func (m *Metrics) RecordQuotaRejection(kind string) {
	if m == nil {
		return
	}
	m.QuotaRejectionsTotal.WithLabelValues(kind).Inc()
}

// RecordLimitsLookup counts a service limits cache lookup
func (m *Metrics) RecordLimitsLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.LimitsCacheTotal.WithLabelValues(result).Inc()
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests. routeName maps a request
// to a low-cardinality path label.
func HTTPMetricsMiddleware(metrics *Metrics, routeName func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if routeName != nil {
				path = routeName(r)
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
