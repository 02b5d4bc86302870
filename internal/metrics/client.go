package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics records facade operations.
type ClientMetrics interface {
	// RecordOperation counts one call of op and its latency. status is the
	// result code name, "OK" on success.
	RecordOperation(op string, status string, duration time.Duration)

	// RecordBytes adds n transferred bytes for op (read or write).
	RecordBytes(op string, n int)

	SetOpenFiles(n int)
}

type clientMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	bytes      *prometheus.CounterVec
	openFiles  prometheus.Gauge
}

// NewClientMetrics returns a no-op implementation when metrics are disabled.
func NewClientMetrics() ClientMetrics {
	if !IsEnabled() {
		return nopClientMetrics{}
	}

	return &clientMetrics{
		operations: register(prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandblock_client_operations_total",
				Help: "Client operations by name and result code",
			},
			[]string{"operation", "status"},
		)),
		latency: register(prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sandblock_client_operation_duration_seconds",
				Help:    "Client operation latency",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"operation"},
		)),
		bytes: register(prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandblock_client_bytes_total",
				Help: "Bytes transferred by synchronous and asynchronous IO",
			},
			[]string{"operation"},
		)),
		openFiles: register(prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sandblock_client_open_files",
				Help: "Descriptors currently registered",
			},
		)),
	}
}

func (m *clientMetrics) RecordOperation(op string, status string, duration time.Duration) {
	m.operations.WithLabelValues(op, status).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *clientMetrics) RecordBytes(op string, n int) {
	if n > 0 {
		m.bytes.WithLabelValues(op).Add(float64(n))
	}
}

func (m *clientMetrics) SetOpenFiles(n int) {
	m.openFiles.Set(float64(n))
}

type nopClientMetrics struct{}

func (nopClientMetrics) RecordOperation(string, string, time.Duration) {}
func (nopClientMetrics) RecordBytes(string, int)                      {}
func (nopClientMetrics) SetOpenFiles(int)                             {}
