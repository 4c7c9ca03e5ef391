package relay

import "github.com/prometheus/client_golang/prometheus"

var (
	connectedSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_connected_sessions",
			Help: "Number of live user sessions.",
		},
	)

	messagesRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_routed_total",
			Help: "Messages routed, by delivery status.",
		},
		[]string{"status"},
	)

	deliveryErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_delivery_errors_total",
			Help: "Sends rejected before routing.",
		},
	)

	backlogFlushed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_backlog_flushed_total",
			Help: "Stored messages delivered on reconnect.",
		},
	)

	readReceipts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_read_receipts_total",
			Help: "Read receipts relayed to senders.",
		},
	)

	presenceBroadcasts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_presence_broadcasts_total",
			Help: "Presence snapshots broadcast to all sessions.",
		},
	)
)

func init() {
	prometheus.MustRegister(connectedSessions)
	prometheus.MustRegister(messagesRouted)
	prometheus.MustRegister(deliveryErrors)
	prometheus.MustRegister(backlogFlushed)
	prometheus.MustRegister(readReceipts)
	prometheus.MustRegister(presenceBroadcasts)
}
