// Package metrics wires the prometheus instrumentation referenced by
// SPEC_FULL.md's domain-stack table: queue depth, job duration, and HTTP
// request metrics, served at /metrics by internal/gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry groups the collectors. The scheduler updates QueueDepth,
// JobDuration and JobsTotal; HTTPRequests and HTTPDuration are registered
// but no component updates them.
type Registry struct {
	QueueDepth    *prometheus.GaugeVec
	JobDuration   *prometheus.HistogramVec
	JobsTotal     *prometheus.CounterVec
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
}

// New registers all collectors against reg (use
// prometheus.NewRegistry() in tests to avoid the global default registry's
// cross-test collisions).
func New(reg prometheus.Registerer) *Registry {
	f := promauto.With(reg)
	return &Registry{
		QueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "simcore_queue_depth",
			Help: "Number of jobs currently queued or running per queue.",
		}, []string{"queue"}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "simcore_job_duration_seconds",
			Help:    "Wall-clock duration of a job from dispatch to reap.",
			Buckets: prometheus.DefBuckets,
		}, []string{"queue", "status"}),
		JobsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "simcore_jobs_total",
			Help: "Total jobs reaped, by queue and terminal status.",
		}, []string{"queue", "status"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "simcore_http_requests_total",
			Help: "Total HTTP requests served by JobGateway.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "simcore_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// ObserveJob records a reaped job's duration and increments its terminal
// counter.
func (r *Registry) ObserveJob(queue, status string, durationSeconds float64) {
	r.JobDuration.WithLabelValues(queue, status).Observe(durationSeconds)
	r.JobsTotal.WithLabelValues(queue, status).Inc()
}

// SetQueueDepth records the current number of queued+running jobs for a
// queue.
func (r *Registry) SetQueueDepth(queue string, depth int) {
	r.QueueDepth.WithLabelValues(queue).Set(float64(depth))
}
