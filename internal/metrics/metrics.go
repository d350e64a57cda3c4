package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EscalationActions tracks escalation actions triggered per action type
	EscalationActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recourse_escalation_actions_total",
			Help: "Total number of escalation actions triggered",
		},
		[]string{"action"},
	)

	// TasksProcessed tracks task executions per type and terminal outcome
	TasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recourse_tasks_processed_total",
			Help: "Total number of task executions",
		},
		[]string{"task_type", "outcome"},
	)

	// TasksReclaimed tracks tasks requeued by the stale-processing reaper
	TasksReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recourse_tasks_reclaimed_total",
			Help: "Total number of stale processing tasks requeued",
		},
	)

	// QueueDepth tracks the number of tasks per status
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recourse_queue_depth",
			Help: "Number of tasks per status",
		},
		[]string{"status"},
	)

	// CarrierCalls tracks carrier gateway lookups per carrier and outcome
	CarrierCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recourse_carrier_calls_total",
			Help: "Total number of carrier tracking lookups",
		},
		[]string{"carrier", "outcome"},
	)

	// CarrierCallLatency tracks carrier lookup latency
	CarrierCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recourse_carrier_call_latency_seconds",
			Help:    "Carrier tracking lookup latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"carrier"},
	)

	// BypassAlerts tracks bypass alerts raised
	BypassAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recourse_bypass_alerts_total",
			Help: "Total number of bypass alerts created",
		},
	)
)
