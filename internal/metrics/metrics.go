package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage request outcomes
const (
	OutcomeReady  = "ready"
	OutcomeFailed = "failed"
	// OutcomeStale marks a response discarded because a newer request or a
	// new upload superseded it.
	OutcomeStale = "stale"
)

// Upload outcomes
const (
	UploadSucceeded = "succeeded"
	UploadFailed    = "failed"
)

// Recorder owns a dedicated registry so tests and the dev server never collide
// with the global default registry. A nil *Recorder records nothing.
type Recorder struct {
	registry      *prometheus.Registry
	stageRequests *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	uploads       *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
}

// NewRecorder registers every collector under namespace
func NewRecorder(namespace string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_requests_total",
			Help:      "Analysis stage requests by stage and outcome.",
		}, []string{"stage", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Latency of analysis stage requests.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_total",
			Help:      "Upload attempts by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Served HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
	r.registry.MustRegister(
		r.stageRequests,
		r.stageDuration,
		r.uploads,
		r.httpRequests,
		collectors.NewGoCollector(),
	)
	return r
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveStage counts one finished stage request
func (r *Recorder) ObserveStage(stage, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.stageRequests.WithLabelValues(stage, outcome).Inc()
	r.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveUpload counts one upload attempt
func (r *Recorder) ObserveUpload(outcome string) {
	if r == nil {
		return
	}
	r.uploads.WithLabelValues(outcome).Inc()
}

// ObserveHTTP counts one served request
func (r *Recorder) ObserveHTTP(route string, code int) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// StageCount returns the current counter value, mainly for tests and reports
func (r *Recorder) StageCount(stage, outcome string) float64 {
	if r == nil {
		return 0
	}
	return counterValue(r.stageRequests.WithLabelValues(stage, outcome))
}

// UploadCount returns the number of uploads with the given outcome
func (r *Recorder) UploadCount(outcome string) float64 {
	if r == nil {
		return 0
	}
	return counterValue(r.uploads.WithLabelValues(outcome))
}
