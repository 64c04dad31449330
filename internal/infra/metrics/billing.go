package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(billingSettlements) }

var billingSettlements = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "billing_settlements_total",
		Help: "Billing settlements by outcome (billed/already_billed/insufficient_funds).",
	},
	[]string{"outcome"},
)

func IncSettlement(outcome string) {
	billingSettlements.WithLabelValues(outcome).Inc()
}
