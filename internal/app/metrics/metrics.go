package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "omnilaze",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnilaze",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "omnilaze",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	verificationCodes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnilaze",
			Subsystem: "verification",
			Name:      "codes_total",
			Help:      "Verification codes issued, by delivery result.",
		},
		[]string{"result"},
	)

	verificationChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnilaze",
			Subsystem: "verification",
			Name:      "checks_total",
			Help:      "Verification attempts, by outcome.",
		},
		[]string{"result"},
	)

	ordersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "omnilaze",
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Total number of orders created.",
		},
	)

	rewardClaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnilaze",
			Subsystem: "rewards",
			Name:      "claims_total",
			Help:      "Free-drink claim attempts, by outcome.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		verificationCodes,
		verificationChecks,
		ordersCreated,
		rewardClaims,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordVerificationCode counts an issued code by delivery result.
func RecordVerificationCode(result string) {
	verificationCodes.WithLabelValues(result).Inc()
}

// RecordVerificationCheck counts a verification attempt by outcome.
func RecordVerificationCheck(result string) {
	verificationChecks.WithLabelValues(result).Inc()
}

// RecordOrderCreated counts a created order.
func RecordOrderCreated() {
	ordersCreated.Inc()
}

// RecordRewardClaim counts a claim attempt by outcome.
func RecordRewardClaim(result string) {
	rewardClaims.WithLabelValues(result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses per-entity path segments so metric labels
// stay low-cardinality.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "orders":
		if len(parts) > 1 {
			return "/orders/:user_id"
		}
		return "/orders"
	case "preferences":
		switch len(parts) {
		case 1:
			return "/preferences"
		case 2:
			return "/preferences/:user_id"
		default:
			return "/preferences/:user_id/" + parts[2]
		}
	default:
		return "/" + parts[0]
	}
}
