package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Eviction reasons.
const (
	ReasonRevolution = "revolution"
	ReasonCapacity   = "capacity"
)

var (
	MessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweepscope_messages_total",
		Help: "Total number of raw messages received from the feed",
	})
	MalformedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweepscope_malformed_messages_total",
		Help: "Total number of messages that failed to decode",
	})
	FeaturesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweepscope_features_total",
		Help: "Total number of features rendered",
	})
	BatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweepscope_batches_total",
		Help: "Total number of merged batches rendered",
	})
	SuppressedBatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweepscope_suppressed_batches_total",
		Help: "Total number of merged batches dropped before the sweep armed",
	})
	CoalescedMessages = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sweepscope_coalesced_messages",
		Help:    "Number of queued messages merged into one batch",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
	})
	EvictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweepscope_evictions_total",
		Help: "Total number of feature groups evicted, by reason",
	}, []string{"reason"})
	StaleHandlesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweepscope_stale_handles_total",
		Help: "Total number of surface operations on handles the surface no longer had",
	})
	Layers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sweepscope_layers",
		Help: "Number of feature groups currently on the surface",
	})
	SweepPhase = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sweepscope_sweep_phase",
		Help: "Current sweep phase (0 cold, 1 armed, 2 sweeping)",
	})
	RangeRadiusMeters = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sweepscope_range_radius_meters",
		Help: "Current radius of the range indicator",
	})
	FeedConnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweepscope_feed_connects_total",
		Help: "Total number of successful feed connections",
	})

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweepscope_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"path", "method", "code"})
	httpDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sweepscope_http_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method"})
)

func init() {
	prometheus.MustRegister(
		MessagesTotal,
		MalformedTotal,
		FeaturesTotal,
		BatchesTotal,
		SuppressedBatchesTotal,
		CoalescedMessages,
		EvictionsTotal,
		StaleHandlesTotal,
		Layers,
		SweepPhase,
		RangeRadiusMeters,
		FeedConnects,
		httpRequestsTotal,
		httpDurationSeconds,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := normalizeRoute(r.URL.Path)
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func normalizeRoute(path string) string {
	switch path {
	case "/", "/metrics", "/healthz", "/snapshot":
		return path
	}
	return "other"
}
