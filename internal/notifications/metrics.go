package notifications

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "confhub"

var (
	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "queue_size",
			Help:      "Number of notifications in queue by status",
		},
		[]string{"status"},
	)

	deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Total notifications processed",
		},
		[]string{"status"},
	)

	sendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "send_duration_seconds",
			Help:      "Time to send notification",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	fetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "queue_fetched_total",
			Help:      "Total notifications claimed from the queue before a send attempt",
		},
	)
)

func countDelivery(outcome string) {
	deliveries.WithLabelValues(outcome).Inc()
}

func observeSendDuration(d time.Duration) {
	sendDuration.Observe(d.Seconds())
}

func countFetched(n int) {
	fetched.Add(float64(n))
}

// RecordQueueStats publishes queue depth per status. Sampled
// periodically by the app.
func RecordQueueStats(stats *QueueStats) {
	queueDepth.WithLabelValues("pending").Set(float64(stats.Pending))
	queueDepth.WithLabelValues("processing").Set(float64(stats.Processing))
	queueDepth.WithLabelValues("sent").Set(float64(stats.Sent))
	queueDepth.WithLabelValues("failed").Set(float64(stats.Failed))
}
