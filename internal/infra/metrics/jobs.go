package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(chatJobsProcessedTotal, chatJobsInFlight, chatJobRetriesTotal) }

var chatJobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_jobs_processed_total",
		Help: "Total number of chat jobs that reached a terminal state, labeled by status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

var chatJobsInFlight = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "chat_jobs_in_flight",
		Help: "Number of chat jobs currently being processed.",
	},
)

var chatJobRetriesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "chat_job_retries_total",
		Help: "Total number of chat job retry re-enqueues.",
	},
)

func IncChatJob(status string) {
	chatJobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func IncJobRetry() { chatJobRetriesTotal.Inc() }

func SetJobsInFlight(n int) { chatJobsInFlight.Set(float64(n)) }
