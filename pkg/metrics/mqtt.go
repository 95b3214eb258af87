package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/avionyx/flightd/pkg/mqtt"
)

// consumerMetrics is the Prometheus implementation of mqtt.Metrics.
type consumerMetrics struct {
	connects    prometheus.Counter
	disconnects prometheus.Counter
	messages    prometheus.Counter
}

// NewConsumerMetrics returns a Prometheus-backed mqtt.Metrics, or nil
// when metrics are disabled.
func NewConsumerMetrics() mqtt.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &consumerMetrics{
		connects: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "flightd_mqtt_connects_total",
			Help: "Total number of successful broker connections, including reconnects",
		}),
		disconnects: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "flightd_mqtt_connection_losses_total",
			Help: "Total number of broker connection losses",
		}),
		messages: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "flightd_mqtt_messages_total",
			Help: "Total number of telemetry messages routed into the ingestion buffer",
		}),
	}
}

func (m *consumerMetrics) Connected() {
	if m == nil {
		return
	}
	m.connects.Inc()
}

func (m *consumerMetrics) ConnectionLost() {
	if m == nil {
		return
	}
	m.disconnects.Inc()
}

func (m *consumerMetrics) ObserveMessage() {
	if m == nil {
		return
	}
	m.messages.Inc()
}
