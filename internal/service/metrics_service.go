package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/forum-archive-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the archive worker.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	jobsTotal        *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	itemsFetched     *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	jobsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "archive_jobs_total",
		Help: "Archive jobs that reached a terminal status",
	}, []string{"status"})

	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "archive_job_duration_seconds",
		Help:    "Wall time from job start to terminal status",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"status"})

	itemsFetched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "archive_items_fetched_total",
		Help: "Normalized items persisted per platform",
	}, []string{"platform"})

	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "archive_upstream_request_duration_seconds",
		Help:    "Duration of forum GraphQL requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"platform", "operation", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, jobsTotal, jobDuration, itemsFetched, upstreamDuration, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		jobsTotal:        jobsTotal,
		jobDuration:      jobDuration,
		itemsFetched:     itemsFetched,
		upstreamDuration: upstreamDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveJob records a job reaching a terminal status.
func (m *MetricsService) ObserveJob(status models.JobStatus, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(string(status)).Inc()
	m.jobDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
}

// AddItemsFetched counts items persisted for platform.
func (m *MetricsService) AddItemsFetched(platform models.Platform, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.itemsFetched.WithLabelValues(string(platform)).Add(float64(count))
}

// ObserveUpstream records one forum GraphQL request.
func (m *MetricsService) ObserveUpstream(platform models.Platform, operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(string(platform), operation, outcome).Observe(duration.Seconds())
}
