package mptt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mptt_mutations_total",
	Help: "The total number of tree mutations, by operation and outcome",
}, []string{"table", "op", "outcome"})

var mutationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "mptt_mutation_duration_seconds",
	Help:    "Time spent in a tree mutation, lock wait included",
	Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
}, []string{"table", "op"})

var lockWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "mptt_lock_wait_seconds",
	Help:    "Time spent waiting for the tree lock",
	Buckets: prometheus.ExponentialBuckets(0.0001, 2, 18),
}, []string{"table"})

var rowsShifted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mptt_rows_shifted_total",
	Help: "The total number of row boundaries rewritten while opening or closing gaps",
}, []string{"table", "direction"})

var compensations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mptt_gap_compensations_total",
	Help: "The number of opened gaps closed again after a failed write",
}, []string{"table"})

var verifyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mptt_verify_failures_total",
	Help: "The number of scopes failing an integrity check",
}, []string{"table", "check"})

const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case IsRejected(err):
		return outcomeRejected
	default:
		return outcomeError
	}
}
