package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes of one DLQ pass over an entry.
const (
	outcomeRequeued       = "requeued"
	outcomeRetryScheduled = "retry_scheduled"
	outcomeQuarantined    = "quarantined"
)

var (
	dlqOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talent_service",
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "DLQ entries handled, labeled by topic, event type and outcome.",
	}, []string{"topic", "event_type", "outcome"})

	dlqBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "talent_service",
		Subsystem: "dlq",
		Name:      "queued_messages",
		Help:      "Entries still waiting for a retry.",
	})

	dlqQuarantinedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "talent_service",
		Subsystem: "dlq",
		Name:      "quarantined_messages",
		Help:      "Entries parked after exhausting retries.",
	})
)

func init() {
	prometheus.MustRegister(dlqOutcomeCounter, dlqBacklogGauge, dlqQuarantinedGauge)
}

func recordDLQOutcome(entry dlqEntry, outcome string) {
	dlqOutcomeCounter.WithLabelValues(entry.Topic, entry.EventType, outcome).Inc()
}

// updateDLQGauges refreshes both gauges in one scan. Failures leave the last
// values in place.
func updateDLQGauges(ctx context.Context, pool *pgxpool.Pool) {
	var queued, quarantined int
	err := pool.QueryRow(ctx, `SELECT COUNT(*) FILTER (WHERE quarantined_at IS NULL),
	                                  COUNT(*) FILTER (WHERE quarantined_at IS NOT NULL)
	                             FROM outbox_dlq`).Scan(&queued, &quarantined)
	if err != nil {
		return
	}
	dlqBacklogGauge.Set(float64(queued))
	dlqQuarantinedGauge.Set(float64(quarantined))
}
