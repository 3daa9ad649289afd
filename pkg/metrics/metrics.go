// Package metrics holds the Prometheus collectors for the extraction
// pipeline, the raw store writer and the warehouse sync.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "moviewarehouse"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tmdb",
		Name:      "requests_total",
		Help:      "TMDb API requests by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	rawWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rawstore",
		Name:      "writes_total",
		Help:      "Raw store record writes by collection and outcome (inserted, updated, unchanged, failed).",
	}, []string{"collection", "outcome"})

	stageRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "stage_runs_total",
		Help:      "Pipeline stage attempts by stage and outcome.",
	}, []string{"stage", "outcome"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Wall time of a pipeline stage attempt.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	}, []string{"stage"})

	warehouseRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "warehouse",
		Name:      "rows_total",
		Help:      "Warehouse rows written during sync by table and outcome.",
	}, []string{"table", "outcome"})
)

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// RecordAPIRequest counts one TMDb request.
func RecordAPIRequest(endpoint string, ok bool) {
	apiRequests.WithLabelValues(endpoint, outcome(ok)).Inc()
}

// RecordRawWrites adds the outcome counts of one bulk write.
func RecordRawWrites(collection string, inserted, updated, unchanged, failed int) {
	rawWrites.WithLabelValues(collection, "inserted").Add(float64(inserted))
	rawWrites.WithLabelValues(collection, "updated").Add(float64(updated))
	rawWrites.WithLabelValues(collection, "unchanged").Add(float64(unchanged))
	rawWrites.WithLabelValues(collection, "failed").Add(float64(failed))
}

// ObserveStage records one stage attempt.
func ObserveStage(stage string, elapsed time.Duration, ok bool) {
	stageRuns.WithLabelValues(stage, outcome(ok)).Inc()
	stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// RecordWarehouseRows adds synced and skipped row counts for a table.
func RecordWarehouseRows(table string, inserted, failed int) {
	warehouseRows.WithLabelValues(table, OutcomeSuccess).Add(float64(inserted))
	warehouseRows.WithLabelValues(table, OutcomeFailure).Add(float64(failed))
}
