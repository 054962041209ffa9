// Package metrics exposes the identity backend's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records backend activity. A nil *Collector records nothing, so
// services can be built without one in tests.
type Collector struct {
	signUps             prometheus.Counter
	grants              *prometheus.CounterVec
	revocations         prometheus.Counter
	housekeepingRuns    *prometheus.CounterVec
	housekeepingDeleted prometheus.Counter
	httpRequests        *prometheus.CounterVec
	httpLatency         *prometheus.HistogramVec
}

// NewCollector creates the backend metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signUps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "askbar_backend_sign_ups_total",
			Help: "Identities created.",
		}),
		grants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "askbar_backend_token_grants_total",
			Help: "Token grants by grant type and result.",
		}, []string{"grant", "result"}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "askbar_backend_sessions_revoked_total",
			Help: "Sessions revoked on sign-out.",
		}),
		housekeepingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "askbar_backend_housekeeping_runs_total",
			Help: "Housekeeping passes by result.",
		}, []string{"result"}),
		housekeepingDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "askbar_backend_housekeeping_deleted_total",
			Help: "Expired or revoked refresh tokens deleted.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "askbar_backend_http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		}, []string{"route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "askbar_backend_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.signUps,
		c.grants,
		c.revocations,
		c.housekeepingRuns,
		c.housekeepingDeleted,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

func (c *Collector) RecordSignUp() {
	if c != nil {
		c.signUps.Inc()
	}
}

// RecordGrant counts a token grant. result is "ok" or the error code sent
// to the client.
func (c *Collector) RecordGrant(grant, result string) {
	if c != nil {
		c.grants.WithLabelValues(grant, result).Inc()
	}
}

func (c *Collector) RecordRevocation() {
	if c != nil {
		c.revocations.Inc()
	}
}

func (c *Collector) RecordHousekeeping(deleted int64, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.housekeepingRuns.WithLabelValues("error").Inc()
		return
	}
	c.housekeepingRuns.WithLabelValues("ok").Inc()
	c.housekeepingDeleted.Add(float64(deleted))
}

func (c *Collector) RecordHTTPRequest(route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(route).Observe(d.Seconds())
}

// HTTPMiddleware records every request under the ServeMux pattern that
// served it. It has to wrap the mux directly so the pattern set by the mux
// is visible after the call.
func (c *Collector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		c.RecordHTTPRequest(r.Pattern, rw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter

	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Handler serves the Prometheus exposition format for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
