package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bulkOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendants",
		Subsystem: "bulk",
		Name:      "operations_total",
		Help:      "Total number of bulk operations broken down by operation and result.",
	}, []string{"operation", "result"})

	bulkItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendants",
		Subsystem: "bulk",
		Name:      "items_total",
		Help:      "Total number of rows written by successful bulk operations.",
	}, []string{"operation"})

	writeConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendants",
		Subsystem: "write",
		Name:      "conflicts_total",
		Help:      "Total number of write conflicts broken down by kind.",
	}, []string{"kind"})
)

func recordBulk(operation string, items int, err error) {
	if err != nil {
		bulkOperations.WithLabelValues(operation, string(KindOf(err))).Inc()
		return
	}
	bulkOperations.WithLabelValues(operation, "ok").Inc()
	bulkItems.WithLabelValues(operation).Add(float64(items))
}

func recordWriteConflict(kind string) {
	if kind == "" {
		kind = "other"
	}
	writeConflicts.WithLabelValues(kind).Inc()
}
