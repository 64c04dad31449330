package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(wsConnections, wsBroadcasts, wsDroppedFrames) }

var wsConnections = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "ws_connections",
		Help: "Currently open websocket connections.",
	},
)

var wsBroadcasts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ws_broadcasts_total",
		Help: "Frames fanned out to subscribers, by frame type.",
	},
	[]string{"type"},
)

var wsDroppedFrames = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ws_dropped_frames_total",
		Help: "Frames dropped because a subscriber's send buffer was full.",
	},
)

func WsConnOpened() { wsConnections.Inc() }
func WsConnClosed() { wsConnections.Dec() }

func IncBroadcast(frameType string) { wsBroadcasts.WithLabelValues(frameType).Inc() }
func IncDroppedFrame()              { wsDroppedFrames.Inc() }
