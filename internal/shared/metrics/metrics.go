package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "filing"

var (
	registry = prometheus.NewRegistry()

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "runs_total",
			Help:      "Total filing runs by result.",
		},
		[]string{"result"},
	)
	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "run_duration_seconds",
			Help:      "Duration of a whole filing run in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
	documentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "documents_total",
			Help:      "Documents processed by outcome.",
		},
		[]string{"status"},
	)
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each per-document stage in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage", "result"},
	)
	inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "documents_in_flight",
			Help:      "Documents currently being processed.",
		},
	)
	wakeMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "wake_messages_total",
			Help:      "Wake-up queue messages by handling result.",
		},
		[]string{"result"},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	registry.MustRegister(
		runsTotal,
		runDuration,
		documentsTotal,
		stageDuration,
		inFlight,
		wakeMessagesTotal,
		httpRequestsTotal,
		httpRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IncRun counts a finished run ("ok", "error", "skipped").
func IncRun(result string) {
	runsTotal.WithLabelValues(result).Inc()
}

// ObserveRunDuration records the wall time of a run.
func ObserveRunDuration(d time.Duration) {
	runDuration.Observe(seconds(d))
}

// IncDocument counts a document outcome ("completed", "failed", "skipped", "released").
func IncDocument(status string) {
	documentsTotal.WithLabelValues(status).Inc()
}

// ObserveStage records the duration of one pipeline stage.
func ObserveStage(stage string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	stageDuration.WithLabelValues(stage, result).Observe(seconds(d))
}

// StartDocument marks a document as in flight.
func StartDocument() {
	inFlight.Inc()
}

// FinishDocument clears the in-flight mark set by StartDocument.
func FinishDocument() {
	inFlight.Dec()
}

// IncWakeMessage counts a handled wake-up message.
func IncWakeMessage(result string) {
	wakeMessagesTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest records a served request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(seconds(d))
}

// HTTPHandler exposes the registry in Prometheus text format.
func HTTPHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Handler adapts HTTPHandler for gin.
func Handler() gin.HandlerFunc {
	return gin.WrapH(HTTPHandler())
}

func seconds(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return d.Seconds()
}
