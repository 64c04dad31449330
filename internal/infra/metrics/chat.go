package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(chatTransitions, chatMessages) }

var chatTransitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_transitions_total",
		Help: "Chat lifecycle transitions by (from, to) status.",
	},
	[]string{"from", "to"},
)

var chatMessages = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Inbound chat messages by outcome (stored/duplicate).",
	},
	[]string{"outcome"},
)

func IncTransition(from, to string) {
	chatTransitions.WithLabelValues(from, to).Inc()
}

func IncMessage(outcome string) {
	chatMessages.WithLabelValues(outcome).Inc()
}
