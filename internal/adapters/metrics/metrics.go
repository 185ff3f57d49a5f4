// Package metrics exposes upload outcomes and collector traffic as
// Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cyface-de/cyup/internal/domain"
	"github.com/cyface-de/cyup/internal/ports"
)

// Metrics implements app.UploadEventEmitter. Each instance owns its
// registry so tests and multiple instances do not collide.
type Metrics struct {
	registry *prometheus.Registry

	uploads         *prometheus.CounterVec
	uploadedBytes   prometheus.Counter
	failedAttempts  prometheus.Histogram
	uploadDuration  prometheus.Histogram
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates and registers the metric set.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cyup",
			Name:      "uploads_total",
			Help:      "Measurement uploads by result.",
		}, []string{"result"}),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cyup",
			Name:      "uploaded_bytes_total",
			Help:      "Compressed payload bytes accepted by the collector.",
		}),
		failedAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cyup",
			Name:      "upload_failed_attempts",
			Help:      "Failed attempts per finished upload.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		}),
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cyup",
			Name:      "upload_duration_seconds",
			Help:      "Wall time of successful uploads including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cyup",
			Name:      "collector_requests_total",
			Help:      "Protocol requests by type and status code (0 on transport error).",
		}, []string{"request", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cyup",
			Name:      "collector_request_duration_seconds",
			Help:      "Protocol request latency by type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"request"}),
	}

	m.registry.MustRegister(
		m.uploads,
		m.uploadedBytes,
		m.failedAttempts,
		m.uploadDuration,
		m.requests,
		m.requestDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OnUploadSuccess records a confirmed upload.
func (m *Metrics) OnUploadSuccess(_ uint64, bytes int, failedAttempts int, duration time.Duration) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues("success").Inc()
	m.uploadedBytes.Add(float64(bytes))
	m.failedAttempts.Observe(float64(failedAttempts))
	m.uploadDuration.Observe(duration.Seconds())
}

// OnUploadFailure records an upload that ended without confirmation.
func (m *Metrics) OnUploadFailure(_ uint64, _ error, _ int) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues("failure").Inc()
}

// WrapCollector counts and times every request sent through c.
func (m *Metrics) WrapCollector(c ports.Collector) ports.Collector {
	return &collector{next: c, metrics: m}
}

type collector struct {
	next    ports.Collector
	metrics *Metrics
}

func (c *collector) PreRequest(ctx context.Context, req ports.PreRequest) (ports.Response, error) {
	start := time.Now()
	resp, err := c.next.PreRequest(ctx, req)
	c.metrics.observe(domain.RequestPreRequest, resp, err, start)
	return resp, err
}

func (c *collector) Transfer(ctx context.Context, req ports.Transfer) (ports.Response, error) {
	start := time.Now()
	resp, err := c.next.Transfer(ctx, req)
	c.metrics.observe(domain.RequestUpload, resp, err, start)
	return resp, err
}

func (c *collector) StatusCheck(ctx context.Context, req ports.StatusCheck) (ports.Response, error) {
	start := time.Now()
	resp, err := c.next.StatusCheck(ctx, req)
	c.metrics.observe(domain.RequestStatusCheck, resp, err, start)
	return resp, err
}

func (m *Metrics) observe(rt domain.RequestType, resp ports.Response, err error, start time.Time) {
	status := resp.StatusCode
	if err != nil {
		status = 0
	}
	m.requests.WithLabelValues(string(rt), strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(string(rt)).Observe(time.Since(start).Seconds())
}
