package telemetry

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decisions_total",
			Help: "Total decisions produced, by kind and action",
		},
		[]string{"kind", "action"},
	)
	DecisionsDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decisions_degraded_total",
			Help: "Decisions produced without full enrichment, by kind",
		},
		[]string{"kind"},
	)
	DecisionDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "decision_duration_seconds",
			Help:    "End-to-end decision latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	EnrichmentErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_errors_total",
			Help: "Enrichment source failures and timeouts, by source",
		},
		[]string{"source"},
	)

	RecorderQueue = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "recorder_queue_depth",
		Help: "Records currently waiting in the outcome recorder queue",
	})
	RecorderDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recorder_dropped_total",
		Help: "Records dropped because the recorder queue was full",
	})

	SnapshotRules = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "snapshot_rules",
		Help: "Number of rules currently in the in-memory snapshot",
	})
	SnapshotStale = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "snapshot_staleness_seconds",
		Help: "Seconds since the last successful snapshot refresh, 0 when fresh",
	})
)

func Init() {
	prometheus.MustRegister(
		httpReqs, httpDur,
		Decisions, DecisionsDegraded, DecisionDur, EnrichmentErrors,
		RecorderQueue, RecorderDrops,
		SnapshotRules, SnapshotStale,
	)
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// get route pattern if available
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		httpReqs.WithLabelValues(route, r.Method, http.StatusText(ww.status)).Inc()
		httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
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

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
