package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WorkersActive is the current number of booted worker hosts whose
	// engine is still running, by kind (user/main/events). Each Host
	// increments it on boot and decrements it when its engine exits.
	WorkersActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "edgerun_workers_active",
			Help: "Current number of live workers by kind",
		},
		[]string{"kind"},
	)

	WorkerBootDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edgerun_worker_boot_duration_seconds",
			Help:    "Time to boot a worker engine before it can accept requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	WorkerBootFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgerun_worker_boot_failures_total",
			Help: "Total worker boot failures by kind",
		},
		[]string{"kind"},
	)

	// SupervisorBreachesTotal counts resource supervisor terminations, by
	// the limit that was breached (wall_clock, cpu, memory).
	SupervisorBreachesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgerun_supervisor_breaches_total",
			Help: "Total worker terminations by the supervisor, by breached limit",
		},
		[]string{"reason"},
	)

	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "edgerun_requests_in_flight",
			Help: "Number of requests currently being served by a worker",
		},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edgerun_request_duration_seconds",
			Help:    "End-to-end duration of a request served through the transport",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgerun_requests_total",
			Help: "Total requests served, by worker kind and outcome",
		},
		[]string{"kind", "status"},
	)

	PoolEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgerun_pool_evictions_total",
			Help: "Total worker evictions from the pool, by reason",
		},
		[]string{"reason"},
	)

	// PoolOperationDuration times every Create/SendRequest/Shutdown pool
	// command, since the pool owns every mutation point and needs no
	// separate polling collector.
	PoolOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edgerun_pool_operation_duration_seconds",
			Help:    "Duration of pool Create/SendRequest/Shutdown operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "status"},
	)
)

func init() {
	prometheus.MustRegister(WorkersActive)
	prometheus.MustRegister(WorkerBootDuration)
	prometheus.MustRegister(WorkerBootFailuresTotal)
	prometheus.MustRegister(SupervisorBreachesTotal)
	prometheus.MustRegister(RequestsInFlight)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(PoolEvictionsTotal)
	prometheus.MustRegister(PoolOperationDuration)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
