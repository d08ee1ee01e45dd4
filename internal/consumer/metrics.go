package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talent_service",
		Subsystem: "consumer",
		Name:      "messages_processed_total",
		Help:      "Number of candidate events handled and committed.",
	}, []string{"topic", "event_type"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talent_service",
		Subsystem: "consumer",
		Name:      "handler_errors_total",
		Help:      "Number of events left uncommitted after exhausting handler attempts.",
	}, []string{"topic", "event_type"})

	handlerRetryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talent_service",
		Subsystem: "consumer",
		Name:      "handler_retries_total",
		Help:      "Number of handler attempts that failed and were retried.",
	}, []string{"topic"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talent_service",
		Subsystem: "consumer",
		Name:      "decode_errors_total",
		Help:      "Number of malformed records committed without handling, per topic.",
	}, []string{"topic"})

	lagGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "talent_service",
		Subsystem: "consumer",
		Name:      "event_lag_seconds",
		Help:      "Seconds between a record's produce time and its commit, for the latest record per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(processedCounter, handlerErrorCounter, handlerRetryCounter, decodeErrorCounter, lagGauge)
}

func recordProcessed(msg Message, now time.Time) {
	processedCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
	if !msg.Timestamp.IsZero() {
		lagGauge.WithLabelValues(msg.Topic).Set(now.Sub(msg.Timestamp).Seconds())
	}
}

func recordHandlerError(msg Message) {
	handlerErrorCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}

func recordHandlerRetry(msg Message) {
	handlerRetryCounter.WithLabelValues(msg.Topic).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}
