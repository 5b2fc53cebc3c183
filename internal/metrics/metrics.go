package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesTotal counts finished batches by aggregate status
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depositor_batches_total",
			Help: "Total number of deposit batches by aggregate status",
		},
		[]string{"status"},
	)

	// BatchDuration tracks end-to-end batch execution time
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "depositor_batch_duration_seconds",
			Help:    "Batch execution duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// ChainsExecuted counts per-chain executions by terminal status
	ChainsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depositor_chains_executed_total",
			Help: "Total number of per-chain executions by terminal status",
		},
		[]string{"status"},
	)

	// ChainRetries counts automatic re-executions of a failed chain
	ChainRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "depositor_chain_retries_total",
			Help: "Total number of chain execution retries",
		},
	)

	// StepDuration tracks per-step execution time
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "depositor_step_duration_seconds",
			Help:    "Step execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	// TransactionsSubmitted counts submitted transactions by type
	TransactionsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depositor_transactions_submitted_total",
			Help: "Total number of transactions submitted",
		},
		[]string{"type"},
	)

	// TransactionsConfirmed counts mined transactions by type
	TransactionsConfirmed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depositor_transactions_confirmed_total",
			Help: "Total number of transactions confirmed",
		},
		[]string{"type"},
	)

	// ErrorsTotal counts classified errors by kind
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depositor_errors_total",
			Help: "Total number of classified errors",
		},
		[]string{"kind"},
	)
)
