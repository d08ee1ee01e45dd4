// Package observability holds service-wide Prometheus collectors.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"example.com/talent/internal/recency"
)

var (
	candidatePersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "talent_service",
		Subsystem: "persistence",
		Name:      "last_candidate_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent candidate write committed to Postgres.",
	})
	statusChangeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talent_service",
		Subsystem: "persistence",
		Name:      "status_changes_total",
		Help:      "Number of committed candidate pipeline moves, labeled by target status.",
	}, []string{"status"})
	recencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talent_service",
		Subsystem: "recency",
		Name:      "classifications_total",
		Help:      "Number of candidate records labelled, by recency bucket.",
	}, []string{"bucket"})
)

func init() {
	prometheus.MustRegister(candidatePersistGauge, statusChangeCounter, recencyCounter)
}

// RecordCandidatePersisted updates the persistence watermark gauge.
func RecordCandidatePersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	candidatePersistGauge.Set(float64(ts.Unix()))
}

// RecordStatusChange counts a committed pipeline move.
func RecordStatusChange(status string) {
	statusChangeCounter.WithLabelValues(status).Inc()
}

// RecordRecencyClassified counts one recency label handed to a caller.
func RecordRecencyClassified(bucket recency.Bucket) {
	recencyCounter.WithLabelValues(bucket.Key()).Inc()
}
