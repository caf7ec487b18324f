package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cakemarket",
		Subsystem: "chat",
		Name:      "active_connections",
		Help:      "Authenticated WebSocket connections held by this process.",
	})

	HandshakeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cakemarket",
		Subsystem: "chat",
		Name:      "handshake_failures_total",
		Help:      "Rejected WebSocket handshakes by reason code.",
	}, []string{"code"})

	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cakemarket",
		Subsystem: "chat",
		Name:      "messages_sent_total",
		Help:      "Messages committed, by sender side.",
	}, []string{"sender_type"})

	BroadcastDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cakemarket",
		Subsystem: "chat",
		Name:      "broadcast_deliveries_total",
		Help:      "new-message events queued to local connections.",
	})

	DroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cakemarket",
		Subsystem: "chat",
		Name:      "dropped_frames_total",
		Help:      "Outbound frames dropped because a connection's send buffer was full.",
	})
)
