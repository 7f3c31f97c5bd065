package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "menta",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity persisted.",
	})
	progressWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "menta",
		Subsystem: "progress",
		Name:      "writes_total",
		Help:      "Progress recorder writes partitioned by strategy and whether a record was created.",
	}, []string{"strategy", "outcome"})
	progressFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "menta",
		Subsystem: "progress",
		Name:      "failures_total",
		Help:      "Progress recorder failures partitioned by strategy.",
	}, []string{"strategy"})
	aggregationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "menta",
		Subsystem: "progress",
		Name:      "aggregation_duration_seconds",
		Help:      "Time spent reading and reducing progress records for one user.",
		Buckets:   prometheus.DefBuckets,
	})
	aggregationDuplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "menta",
		Subsystem: "progress",
		Name:      "aggregation_duplicate_records_total",
		Help:      "Progress records folded into a summary that already had a record for the same activity type.",
	})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, progressWrites, progressFailures, aggregationDuration, aggregationDuplicates)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordProgressWrite counts a successful recorder call.
func RecordProgressWrite(strategy string, created bool) {
	outcome := "updated"
	if created {
		outcome = "created"
	}
	progressWrites.WithLabelValues(strategy, outcome).Inc()
}

// RecordProgressFailure counts a failed recorder call.
func RecordProgressFailure(strategy string) {
	progressFailures.WithLabelValues(strategy).Inc()
}

// RecordAggregation observes one aggregation. Records beyond one per summary are
// duplicates left behind by non-atomic writers.
func RecordAggregation(elapsed time.Duration, records, summaries int) {
	aggregationDuration.Observe(elapsed.Seconds())
	if records > summaries {
		aggregationDuplicates.Add(float64(records - summaries))
	}
}
