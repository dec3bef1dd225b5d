// Package metrics exposes the Prometheus instruments of the dashboard:
// inbound HTTP requests, outbound calls to the records service and
// extraction outcomes.
package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rechnungen_http_requests_total",
			Help: "Total HTTP requests served.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rechnungen_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	recordsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rechnungen_records_client_requests_total",
			Help: "Requests sent to the hosted-records service.",
		},
		[]string{"code", "method"},
	)

	recordsRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rechnungen_records_client_request_duration_seconds",
			Help:    "Latency of requests to the hosted-records service.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"code", "method"},
	)

	extractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rechnungen_extractions_total",
			Help: "AI extraction calls by outcome.",
		},
		[]string{"outcome"},
	)

	loadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rechnungen_collection_loads_total",
			Help: "Collection loads by outcome (ok, failed, superseded).",
		},
		[]string{"outcome"},
	)
)

// Middleware records request count and duration per normalized path.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := NormalizePath(r.URL.Path)

			wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// InstrumentTransport wraps an outbound transport with request counters and
// latency histograms for the records service. A nil next means http.DefaultTransport.
func InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperCounter(recordsRequestsTotal,
		promhttp.InstrumentRoundTripperDuration(recordsRequestDuration, next))
}

// ObserveExtraction counts one extraction call. outcome is "ok", "partial" or "failed".
func ObserveExtraction(outcome string) {
	extractionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveLoad counts one collection load.
func ObserveLoad(outcome string) {
	loadsTotal.WithLabelValues(outcome).Inc()
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

var idSegment = regexp.MustCompile(`/[0-9a-fA-F]{24}(/|$)`)

// NormalizePath replaces record-id segments with {id} to keep label
// cardinality bounded.
//
//	/rechnungen/5f1a2b3c4d5e6f7a8b9c0d1e/bearbeiten -> /rechnungen/{id}/bearbeiten
func NormalizePath(path string) string {
	return idSegment.ReplaceAllString(path, "/{id}$1")
}
