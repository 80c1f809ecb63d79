// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transitions_total",
			Help: "Total number of application status transitions by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	TransitionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "workflow_transition_duration_seconds",
			Help: "Duration of workflow transition operations in seconds",
		},
		[]string{"operation"},
	)

	ClaimRacesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workflow_claim_races_total",
			Help: "Total number of claim attempts lost to a concurrent claimant",
		},
	)

	ReworkCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workflow_rework_cycles_total",
			Help: "Total number of verify(denied) rework returns to the agent queue",
		},
	)

	CallQueueJoins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "call_queue_joins_total",
			Help: "Total number of call-queue join requests accepted",
		},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of fire-and-forget notification failures by channel",
		},
		[]string{"channel"},
	)

	PaymentCharges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_charges_total",
			Help: "Total number of payment gateway charge attempts by outcome",
		},
		[]string{"outcome"},
	)
)
