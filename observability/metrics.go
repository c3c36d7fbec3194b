package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for intake, backed by any go-utils
// MetricFactory (e.g. the forge-managed metrics system via fapp.Metrics()).
type Metrics struct {
	IngestTotal    gu.Counter
	IngestLatency  gu.Histogram
	RecordsWritten gu.Counter
	Rejections     gu.Counter
}

// NewMetrics creates intake metric instruments using the supplied factory.
// Pass fapp.Metrics() from a forge extension, or metrics.NewMetricsCollector()
// for standalone usage.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		IngestTotal:    factory.Counter("intake_ingest_total"),
		IngestLatency:  factory.Histogram("intake_ingest_latency_seconds"),
		RecordsWritten: factory.Counter("intake_records_written_total"),
		Rejections:     factory.Counter("intake_rejections_total"),
	}
}

// RecordIngest records one pipeline run with its terminal status and latency.
func (m *Metrics) RecordIngest(status string, latencySeconds float64) {
	m.IngestTotal.WithLabels(map[string]string{"status": status}).Inc()
	m.IngestLatency.Observe(latencySeconds)
}

// RecordRejection records a runtime rejection by kind.
func (m *Metrics) RecordRejection(kind string) {
	m.Rejections.WithLabels(map[string]string{"kind": kind}).Inc()
}

// RecordWrite records a persisted create or update.
func (m *Metrics) RecordWrite(action string) {
	m.RecordsWritten.WithLabels(map[string]string{"action": action}).Inc()
}
