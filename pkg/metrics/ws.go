package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/avionyx/flightd/pkg/ws"
)

// hubMetrics is the Prometheus implementation of ws.Metrics.
type hubMetrics struct {
	connected     prometheus.Gauge
	connections   prometheus.Counter
	broadcasts    prometheus.Counter
	broadcastSize prometheus.Histogram
}

// NewHubMetrics returns a Prometheus-backed ws.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewHubMetrics() ws.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &hubMetrics{
		connected: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "flightd_ws_clients_connected",
			Help: "Number of WebSocket clients currently connected",
		}),
		connections: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "flightd_ws_connections_total",
			Help: "Total number of WebSocket connections accepted",
		}),
		broadcasts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "flightd_ws_broadcasts_total",
			Help: "Total number of event frames fanned out to rooms",
		}),
		broadcastSize: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "flightd_ws_broadcast_clients",
			Help:    "Clients reached per room broadcast",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
	}
}

func (m *hubMetrics) ClientConnected() {
	if m == nil {
		return
	}
	m.connections.Inc()
	m.connected.Inc()
}

func (m *hubMetrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.connected.Dec()
}

func (m *hubMetrics) ObserveBroadcast(clients int) {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
	m.broadcastSize.Observe(float64(clients))
}
