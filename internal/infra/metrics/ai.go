package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(aiCallLatency, aiCallsTotal) }

var aiCallLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ai_call_latency_seconds",
		Help:    "Latency of completion provider calls.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	},
	[]string{"model"},
)

var aiCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ai_calls_total",
		Help: "Total completion provider calls, labeled by model and outcome.",
	},
	[]string{"model", "outcome"}, // 'ok', 'error'
)

func ObserveAICall(model string, seconds float64, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	aiCallLatency.WithLabelValues(norm(model)).Observe(seconds)
	aiCallsTotal.WithLabelValues(norm(model), outcome).Inc()
}
