package realtime

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the realtime collectors. The zero registerer leaves them
// unregistered, which keeps tests free of global state.
type Metrics struct {
	published   *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	drops       prometheus.Counter
	connections prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_events_published_total",
			Help: "Events handed to the hub, by kind.",
		}, []string{"kind"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_deliveries_total",
			Help: "Events accepted by a connection sink, by kind.",
		}, []string{"kind"}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_sink_drops_total",
			Help: "Connections dropped because their sink rejected an event.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_connections",
			Help: "Currently registered connections.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.published, m.deliveries, m.drops, m.connections)
	}
	return m
}
