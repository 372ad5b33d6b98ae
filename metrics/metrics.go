package metrics

import (
	"time"

	"gohan/variantstore/models/dtos"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricQueriesTotal     = "queries_total"
	MetricQuerySeconds     = "query_seconds"
	MetricLoadRecordsTotal = "load_records_total"
)

var CounterQueries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gohan",
		Subsystem: "variant",
		Name:      MetricQueriesTotal,
		Help:      "Number of variant store operations by backend and operation.",
	},
	[]string{"backend", "op"},
)

var HistogramQuerySeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "gohan",
		Subsystem: "variant",
		Name:      MetricQuerySeconds,
		Help:      "Latency of variant store operations.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"backend", "op"},
)

var CounterLoadRecords = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gohan",
		Subsystem: "variant",
		Name:      MetricLoadRecordsTotal,
		Help:      "Variant records written by the bulk loader, by outcome.",
	},
	[]string{"backend", "outcome"},
)

func init() {
	prometheus.MustRegister(CounterQueries)
	prometheus.MustRegister(HistogramQuerySeconds)
	prometheus.MustRegister(CounterLoadRecords)
}

// ObserveQuery is meant to be deferred at the top of an adaptor method
func ObserveQuery(backend string, op string, start time.Time) {
	CounterQueries.WithLabelValues(backend, op).Inc()
	HistogramQuerySeconds.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

func RecordLoad(backend string, result dtos.WriteResult) {
	CounterLoadRecords.WithLabelValues(backend, "new").Add(float64(result.NewVariants))
	CounterLoadRecords.WithLabelValues(backend, "updated").Add(float64(result.UpdatedVariants))
	CounterLoadRecords.WithLabelValues(backend, "skipped").Add(float64(result.SkippedVariants))
	CounterLoadRecords.WithLabelValues(backend, "non_inserted").Add(float64(result.NonInsertedVariants))
}
