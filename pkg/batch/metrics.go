package batch

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "kvgverify"

// Metrics counts batch outcomes in a private registry that can be dumped
// in the node exporter textfile format.
type Metrics struct {
	registry *prometheus.Registry

	files    *prometheus.CounterVec
	messages *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics creates the batch metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "files_total",
				Help:      "Files processed by outcome",
			},
			[]string{"status"},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "messages_total",
				Help:      "Reported messages by severity and check id",
			},
			[]string{"severity", "check_id"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "file_duration_seconds",
				Help:      "Time spent on a single file",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
		),
	}
	m.registry.MustRegister(m.files, m.messages, m.duration)
	return m
}

// Observe records one file result.
func (m *Metrics) Observe(res FileResult) {
	m.files.WithLabelValues(res.Status()).Inc()
	m.duration.Observe(res.Duration.Seconds())
	if res.Report == nil {
		return
	}
	for _, msg := range res.Report.Messages {
		m.messages.WithLabelValues(string(msg.Severity), msg.CheckID).Inc()
	}
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes the current values to path.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
