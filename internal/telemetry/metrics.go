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
			Name: "condgate_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "condgate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// EvaluationsTotal counts rule set evaluations by outcome reason.
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "condgate_evaluations_total",
			Help: "Total rule set evaluations by reason",
		},
		[]string{"reason"},
	)
	// RuleParseFailures counts stored rules that failed to compile during
	// a snapshot rebuild.
	RuleParseFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "condgate_rule_parse_failures_total",
		Help: "Total stored rules that failed to parse during snapshot rebuilds",
	})
	// SnapshotRebuilds counts completed snapshot rebuilds.
	SnapshotRebuilds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "condgate_snapshot_rebuilds_total",
		Help: "Total snapshot rebuilds",
	})
	// SnapshotRuleSets tracks the rule set count in the current snapshot.
	SnapshotRuleSets = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "condgate_snapshot_rulesets",
		Help: "Number of rule sets currently in the in-memory snapshot",
	})
	// SSEClients tracks currently connected snapshot stream clients.
	SSEClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "condgate_sse_clients",
		Help: "Number of currently connected SSE clients",
	})
)

func Init() {
	prometheus.MustRegister(httpReqs, httpDur, EvaluationsTotal, RuleParseFailures, SnapshotRebuilds, SnapshotRuleSets, SSEClients)
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

// Flush keeps streaming responses working behind the middleware.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
