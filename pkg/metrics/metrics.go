// Package metrics defines the prometheus instrumentation exposed on the
// ops API's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// OperationsTotal counts workflow operations by outcome.
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loom_operations_total",
			Help: "Total number of workflow operations processed",
		},
		[]string{"op", "status"},
	)

	// OplogEntriesTotal counts operation log entries by level.
	OplogEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loom_oplog_entries_total",
			Help: "Total number of operation log entries recorded",
		},
		[]string{"level"},
	)
)

func init() {
	// Register metrics with the default registry
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(OplogEntriesTotal)
}
