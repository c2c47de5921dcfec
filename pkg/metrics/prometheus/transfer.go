// Package prometheus contains the Prometheus-backed metrics implementations.
package prometheus

import (
	"time"

	"github.com/marmos91/dittodrop/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// transferMetrics is the Prometheus implementation of metrics.TransferMetrics.
type transferMetrics struct {
	sessionsTotal        *prometheus.CounterVec
	sessionDuration      prometheus.Histogram
	filesPerSession      prometheus.Histogram
	filesTotal           *prometheus.CounterVec
	bytesReceived        prometheus.Counter
	fileSize             prometheus.Histogram
	connectionsAccepted  prometheus.Counter
	connectionsThrottled prometheus.Counter
	activeConnections    prometheus.Gauge
}

// NewTransferMetrics returns Prometheus-backed transfer metrics, or a no-op
// implementation when metrics are disabled.
func NewTransferMetrics() metrics.TransferMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopTransferMetrics()
	}
	return newTransferMetrics(metrics.GetRegistry())
}

func newTransferMetrics(reg prometheus.Registerer) *transferMetrics {
	return &transferMetrics{
		sessionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodrop_sessions_total",
				Help: "Total number of transfer sessions by outcome",
			},
			[]string{"status"},
		),
		sessionDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "dittodrop_session_duration_milliseconds",
				Help: "Duration of transfer sessions in milliseconds",
				Buckets: []float64{
					1,      // 1ms
					10,     // 10ms
					100,    // 100ms
					1000,   // 1s
					10000,  // 10s
					60000,  // 1m
					600000, // 10m
				},
			},
		),
		filesPerSession: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dittodrop_session_files",
				Help:    "Number of files announced per session",
				Buckets: []float64{0, 1, 2, 5, 10, 50, 100, 1000},
			},
		),
		filesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodrop_files_total",
				Help: "Total number of announced files by outcome",
			},
			[]string{"status"},
		),
		bytesReceived: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittodrop_bytes_received_total",
				Help: "Total payload bytes written to storage",
			},
		),
		fileSize: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "dittodrop_file_size_bytes",
				Help: "Distribution of received file sizes",
				Buckets: []float64{
					4096,       // 4KB
					65536,      // 64KB
					1048576,    // 1MB
					10485760,   // 10MB
					104857600,  // 100MB
					1073741824, // 1GB
				},
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittodrop_connections_accepted_total",
				Help: "Total number of accepted connections",
			},
		),
		connectionsThrottled: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittodrop_connections_throttled_total",
				Help: "Total number of accepts delayed by the rate limiter",
			},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittodrop_active_connections",
				Help: "Current number of connections being served",
			},
		),
	}
}

func (m *transferMetrics) RecordSession(duration time.Duration, files int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.sessionsTotal.WithLabelValues(status).Inc()
	m.sessionDuration.Observe(float64(duration.Milliseconds()))
	m.filesPerSession.Observe(float64(files))
}

func (m *transferMetrics) RecordFileReceived(bytes uint64) {
	m.filesTotal.WithLabelValues("complete").Inc()
	m.bytesReceived.Add(float64(bytes))
	m.fileSize.Observe(float64(bytes))
}

func (m *transferMetrics) RecordFileFailed() {
	m.filesTotal.WithLabelValues("failed").Inc()
}

func (m *transferMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *transferMetrics) RecordConnectionThrottled() {
	m.connectionsThrottled.Inc()
}

func (m *transferMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}
