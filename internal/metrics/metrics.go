// Package metrics exposes Prometheus collectors for the HTTP surface,
// enrichment lookups and sync runs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadsync_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_lookups_total",
			Help: "Nationality lookups by outcome",
		},
		[]string{"outcome"}, // outcome: "found", "unknown", "error"
	)

	lookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadsync_lookup_duration_seconds",
			Help:    "Duration of a single nationality lookup including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	leadsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_leads_created_total",
			Help: "Leads persisted by status",
		},
		[]string{"status"},
	)

	leadsSynced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadsync_leads_synced_total",
			Help: "Verified leads claimed and sent downstream",
		},
	)

	syncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_sync_runs_total",
			Help: "Sync task invocations by result",
		},
		[]string{"result"}, // result: "ok", "error"
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency. Routes are labelled by
// their chi pattern so path parameters do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the default registry in Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordLookup records one enrichment lookup outcome and its duration.
func RecordLookup(outcome string, d time.Duration) {
	lookupsTotal.WithLabelValues(outcome).Inc()
	lookupDuration.Observe(d.Seconds())
}

// RecordLeadCreated counts a persisted lead.
func RecordLeadCreated(status string) {
	leadsCreated.WithLabelValues(status).Inc()
}

// RecordSyncRun counts a sync invocation and the leads it sent.
func RecordSyncRun(synced int, err error) {
	if err != nil {
		syncRuns.WithLabelValues("error").Inc()
	} else {
		syncRuns.WithLabelValues("ok").Inc()
	}
	leadsSynced.Add(float64(synced))
}
