package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// movementsPosted tracks posted ledger movements by movement type.
	movementsPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_movements_posted_total",
		Help: "Total number of supplier ledger movements posted by type",
	}, []string{"type"})

	// linesPosted tracks per-line demote postings by outcome.
	linesPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_line_demotes_posted_total",
		Help: "Total number of line demote postings by outcome",
	}, []string{"outcome"}) // outcome: ok, warning, error, failed

	// pendencies tracks pendency codes returned by the posting procedures.
	pendencies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_pendencies_total",
		Help: "Total number of pendency codes returned by posting procedures, by class",
	}, []string{"class"})

	// batchDuration tracks the time taken for a full two-phase batch.
	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_batch_duration_seconds",
		Help:    "Time taken to post a demote batch end to end",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	// batchSize tracks the distribution of submitted batch sizes.
	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_batch_size_lines",
		Help:    "Number of line items per submitted demote batch",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})
)
