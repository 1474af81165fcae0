package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(wsConnections, wsEventsSentTotal) }

var wsConnections = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "ws_connections_active",
		Help: "Number of live websocket connections registered with the hub.",
	},
)

var wsEventsSentTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ws_events_sent_total",
		Help: "Total server-initiated events pushed to connections, labeled by type.",
	},
	[]string{"type"},
)

func IncWSConnections()            { wsConnections.Inc() }
func DecWSConnections()            { wsConnections.Dec() }
func IncWSEventSent(evType string) { wsEventsSentTotal.WithLabelValues(norm(evType)).Inc() }
