package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talent_service",
		Subsystem: "outbox",
		Name:      "events_delivered_total",
		Help:      "Candidate events published to Kafka, by topic.",
	}, []string{"topic"})

	redeliveredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talent_service",
		Subsystem: "outbox",
		Name:      "events_redelivered_total",
		Help:      "Candidate events published after at least one DLQ replay, by topic.",
	}, []string{"topic"})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talent_service",
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Candidate events that could not be published in a batch, by topic.",
	}, []string{"topic"})

	dlqCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talent_service",
		Subsystem: "outbox",
		Name:      "events_dlq_total",
		Help:      "Candidate events written to outbox_dlq, by topic.",
	}, []string{"topic"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "talent_service",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time to claim, deliver and settle one outbox batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(deliveredCounter, redeliveredCounter, failedCounter, dlqCounter, batchDuration)
}

func recordDelivered(messages []Message) {
	for _, msg := range messages {
		deliveredCounter.WithLabelValues(msg.Topic).Inc()
		if msg.DLQRetries > 0 {
			redeliveredCounter.WithLabelValues(msg.Topic).Inc()
		}
	}
}

func recordFailed(failed []failedMessage) {
	for _, f := range failed {
		failedCounter.WithLabelValues(f.Topic).Inc()
	}
}
