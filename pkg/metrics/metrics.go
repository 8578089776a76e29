package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// admission counter - one per ticket handed out
	// labels: queue (queue name)
	AdmitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flockq_admit_total",
			Help: "total number of tickets admitted",
		},
		[]string{"queue"},
	)

	// turn outcome counter - passed vs timeout vs cancelled
	// timeout rate = timeout / (passed + timeout)
	// labels: queue, outcome (passed/timeout/cancelled)
	TurnTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flockq_turn_total",
			Help: "total number of finished turns by outcome",
		},
		[]string{"queue", "outcome"},
	)

	// time from admission to becoming due (or giving up)
	// histogram to track p50/p90/p99 of queueing delay
	WaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flockq_wait_duration_seconds",
			Help:    "time spent waiting for a turn",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"queue"},
	)

	// how long a turn kept the queue lock: callback plus removal plus rate limit hold
	HoldDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flockq_hold_duration_seconds",
			Help:    "time the queue lock was held for a turn",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"queue"},
	)

	// poll iterations - high counts mean heavy contention or long callbacks
	PollTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flockq_poll_total",
			Help: "total number of poll iterations while waiting",
		},
		[]string{"queue"},
	)

	// ticket removals done by the bookkeeping path
	// labels: queue, mode (background/sync)
	RemoveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flockq_remove_total",
			Help: "total number of tickets removed after a turn",
		},
		[]string{"queue", "mode"},
	)

	// bookkeeping failures - a stale ticket may be left behind
	BookkeepingErrorTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flockq_bookkeeping_error_total",
			Help: "total number of failed ticket removals",
		},
		[]string{"queue"},
	)

	// unreadable queue content recovered as an empty queue
	// any non-zero value deserves a look at the queue file
	StoreCorruptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flockq_store_corrupt_total",
			Help: "total number of corrupt queue reads treated as empty",
		},
		[]string{"queue"},
	)

	// queued tickets as last observed by this process
	TicketsQueued = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flockq_tickets_queued",
			Help: "number of tickets in the queue at last observation",
		},
		[]string{"queue"},
	)
)
