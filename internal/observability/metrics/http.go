package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchesTotal       *prometheus.CounterVec
	retrievedChunks     *prometheus.HistogramVec
	searchDuration      *prometheus.HistogramVec
	correctiveDecisions *prometheus.CounterVec
	fallbackTotal       *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatrag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatrag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chatrag",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatrag",
			Subsystem: "retrieval",
			Name:      "searches_total",
			Help:      "Total completed searches by endpoint.",
		},
		[]string{"service", "endpoint"},
	)
	retrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatrag",
			Subsystem: "retrieval",
			Name:      "retrieved_chunks",
			Help:      "Distribution of returned chunks per search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatrag",
			Subsystem: "retrieval",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	correctiveDecisions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatrag",
			Subsystem: "corrective",
			Name:      "decisions_total",
			Help:      "Corrective evaluation outcomes: accepted or rejected retrieval.",
		},
		[]string{"service", "decision"},
	)
	fallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatrag",
			Subsystem: "corrective",
			Name:      "fallback_total",
			Help:      "Fallback source invocations by outcome.",
		},
		[]string{"service", "outcome"},
	)
	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchesTotal,
		retrievedChunks,
		searchDuration,
		correctiveDecisions,
		fallbackTotal,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		searchesTotal:       searchesTotal,
		retrievedChunks:     retrievedChunks,
		searchDuration:      searchDuration,
		correctiveDecisions: correctiveDecisions,
		fallbackTotal:       fallbackTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordSearch(service, endpoint string, chunkCount int, duration time.Duration) {
	m.searchesTotal.WithLabelValues(service, endpoint).Inc()
	m.retrievedChunks.WithLabelValues(service, endpoint).Observe(float64(chunkCount))
	m.searchDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordCorrectiveDecision(service string, accepted bool) {
	decision := "accepted"
	if !accepted {
		decision = "rejected"
	}
	m.correctiveDecisions.WithLabelValues(service, decision).Inc()
}

func (m *HTTPServerMetrics) RecordFallback(service string, fetched bool) {
	outcome := "guidance"
	if fetched {
		outcome = "web_fetch"
	}
	m.fallbackTotal.WithLabelValues(service, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}
