package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты ingestion для лейбла result
const (
	ResultStored    = "stored"
	ResultDuplicate = "duplicate"
	ResultRejected  = "rejected"
	ResultError     = "error"
)

// Metrics — счетчики tracking-сервиса
type Metrics struct {
	ReportsTotal      *prometheus.CounterVec
	EventsDelivered   prometheus.Counter
	DeliveriesDropped prometheus.Counter
	ActiveConnections prometheus.Gauge
}

// New регистрирует метрики в указанном registry
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ReportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracking_reports_total",
			Help: "GPS reports processed by the ingestion pipeline, by result.",
		}, []string{"result"}),

		EventsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracking_events_delivered_total",
			Help: "Events delivered to websocket subscribers.",
		}),

		DeliveriesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracking_deliveries_dropped_total",
			Help: "Deliveries dropped because the subscriber was unreachable or slow.",
		}),

		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tracking_connections_active",
			Help: "Currently registered websocket connections.",
		}),
	}
}

// NewNop возвращает метрики с изолированным registry (для тестов)
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
