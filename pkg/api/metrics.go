package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the API
type Metrics struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Segment metrics
	segmentOperationsTotal *prometheus.CounterVec
	segmentRecordsTotal    *prometheus.CounterVec
	segmentBytesTotal      *prometheus.CounterVec
	segmentStageDuration   prometheus.Histogram

	// Authentication metrics
	authRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates all Prometheus metrics and registers them with reg.
// A nil reg registers with the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsonlbuf_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jsonlbuf_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "jsonlbuf_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		segmentOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsonlbuf_segment_operations_total",
				Help: "Total number of segment operations",
			},
			[]string{"operation", "status"},
		),

		segmentRecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsonlbuf_segment_records_total",
				Help: "Total number of records serialized into staged segments",
			},
			[]string{"stream"},
		),

		segmentBytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsonlbuf_segment_bytes_total",
				Help: "Total bytes serialized into staged segments, before and after compression",
			},
			[]string{"stream", "stage"},
		),

		segmentStageDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jsonlbuf_segment_stage_duration_seconds",
				Help:    "Time spent buffering and staging one segment",
				Buckets: prometheus.DefBuckets,
			},
		),

		authRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsonlbuf_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"status"},
		),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordSegmentOperation records a segment operation outcome
func (m *Metrics) RecordSegmentOperation(operation string, success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.segmentOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordSegmentStaged records the volume of a staged segment
func (m *Metrics) RecordSegmentStaged(stream string, records, bytes, storedBytes int64, duration time.Duration) {
	m.segmentRecordsTotal.WithLabelValues(stream).Add(float64(records))
	m.segmentBytesTotal.WithLabelValues(stream, "serialized").Add(float64(bytes))
	m.segmentBytesTotal.WithLabelValues(stream, "stored").Add(float64(storedBytes))
	m.segmentStageDuration.Observe(duration.Seconds())
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.authRequestsTotal.WithLabelValues(status).Inc()
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Record request in flight
		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		// Create response writer wrapper to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// InstrumentAuthMiddleware instruments the authentication middleware
func (m *Metrics) InstrumentAuthMiddleware(next func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hasAPIKey := r.Header.Get(APIKeyHeader) != ""

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next(h).ServeHTTP(rw, r)

			if hasAPIKey {
				m.RecordAuthRequest(rw.statusCode != http.StatusUnauthorized)
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
