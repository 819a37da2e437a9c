package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics shared by every route.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the service considers itself ready to serve.",
	})
)

// Ledger domain metrics.
var (
	PostingsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_postings_total",
		Help: "Journal entries committed to the ledger.",
	})

	PostingRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_posting_rejections_total",
			Help: "Journal entries rejected before commit, by reason.",
		},
		[]string{"reason"},
	)

	ReversalsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_reversals_total",
		Help: "Reversing entries posted against earlier entries.",
	})
)

// Init registers all metrics in the default registry. Call once at startup.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration, ready,
		PostingsTotal, PostingRejections, ReversalsTotal,
	)
}

// SetReady flips the readiness gauge reported alongside /readyz.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
		return
	}
	ready.Set(0)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses path parameters so metric labels stay low-cardinality.
// Account codes and entry IDs are replaced with placeholders; everything else
// passes through unchanged (minus the query string).
func CanonicalPath(raw string) string {
	if raw == "" {
		return "/"
	}
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	parts := strings.Split(strings.TrimPrefix(raw, "/"), "/")
	if len(parts) >= 3 && parts[0] == "v1" {
		switch parts[1] {
		case "accounts":
			// /v1/accounts/:code[/children|/retire|/ledger]
			if len(parts) == 3 {
				return "/v1/accounts/:code"
			}
			if len(parts) == 4 {
				switch parts[3] {
				case "children", "retire", "ledger":
					return "/v1/accounts/:code/" + parts[3]
				}
			}
		case "entries":
			if len(parts) == 3 {
				return "/v1/entries/:id"
			}
			if len(parts) == 4 && parts[3] == "reverse" {
				return "/v1/entries/:id/reverse"
			}
		}
	}
	return raw
}

// statusWriter captures the response code written by downstream handlers.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
