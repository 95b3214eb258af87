package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/avionyx/flightd/pkg/ingest"
)

// ingestMetrics is the Prometheus implementation of ingest.Metrics.
type ingestMetrics struct {
	submitted     prometheus.Counter
	flushes       prometheus.Counter
	flushRecords  prometheus.Histogram
	flushDuration prometheus.Histogram
	drops         *prometheus.CounterVec
}

// NewIngestMetrics returns a Prometheus-backed ingest.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
// When nil is returned, callers pass nil to the ingestion buffer, which
// results in zero overhead.
func NewIngestMetrics() ingest.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &ingestMetrics{
		submitted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "flightd_ingest_payloads_submitted_total",
			Help: "Total number of telemetry payloads accepted into the ingestion buffer",
		}),
		flushes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "flightd_ingest_flushes_total",
			Help: "Total number of completed buffer flushes",
		}),
		flushRecords: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "flightd_ingest_flush_records",
			Help:    "Measurement records written per flush",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 250},
		}),
		flushDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "flightd_ingest_flush_duration_milliseconds",
			Help:    "Duration of buffer flushes in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}),
		drops: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightd_ingest_drops_total",
				Help: "Telemetry dropped before storage by reason",
			},
			[]string{"reason"}, // "unknown_flight", "unknown_series", "undecodable", "storage_error"
		),
	}
}

func (m *ingestMetrics) ObserveSubmit() {
	if m == nil {
		return
	}
	m.submitted.Inc()
}

func (m *ingestMetrics) ObserveFlush(records int, duration time.Duration) {
	if m == nil {
		return
	}
	m.flushes.Inc()
	m.flushRecords.Observe(float64(records))
	m.flushDuration.Observe(float64(duration.Milliseconds()))
}

func (m *ingestMetrics) ObserveDrop(reason string) {
	if m == nil {
		return
	}
	m.drops.WithLabelValues(reason).Inc()
}
