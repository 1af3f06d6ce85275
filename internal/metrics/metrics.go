// Package metrics declares the Prometheus instrumentation wired into
// the consumer runtime: per-stage message outcomes, processing
// latency, and dead-letter counts.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MessagesProcessed counts every delivery a consumer disposes of,
// labeled by stage (routing key) and outcome (ack/reject/nack).
var MessagesProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jacobine_messages_processed_total",
		Help: "Messages disposed of by a stage consumer, by stage and outcome.",
	},
	[]string{"stage", "outcome"},
)

// StageDuration measures handler wall-clock time per stage.
var StageDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "jacobine_stage_duration_seconds",
		Help:    "Time spent in a stage handler's Handle call.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
	},
	[]string{"stage"},
)

// DeadLettered counts messages a consumer rejected without requeue,
// labeled by stage. Not every reject is necessarily dead-lettered (the
// queue must have dead-lettering enabled), but every reject is counted
// here as a proxy for forensic backlog size.
var DeadLettered = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jacobine_dlq_total",
		Help: "Messages rejected without requeue, by stage.",
	},
	[]string{"stage"},
)

const (
	OutcomeAck    = "ack"
	OutcomeReject = "reject"
	OutcomeNack   = "nack"
)
