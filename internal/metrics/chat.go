package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(flowsTotal) }

var flowsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tablewatch_flows_total",
		Help: "Finished reservation conversations by outcome.",
	},
	[]string{"provider", "outcome"}, // 'book_now', 'subscribed', 'capacity', 'failed', 'aborted'
)

func IncFlow(provider, outcome string) {
	flowsTotal.WithLabelValues(norm(provider), norm(outcome)).Inc()
}
