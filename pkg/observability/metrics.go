package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethpandaops/cohorts/pkg/records"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// RefreshTotal counts completed refresh runs
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cohorts_refresh_total",
			Help: "Total number of report refresh runs",
		},
		[]string{"trigger", "status"}, // status: success, failed, cancelled, skipped
	)

	// RefreshDuration measures refresh duration in seconds
	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cohorts_refresh_duration_seconds",
			Help:    "Report refresh duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"status"},
	)

	// RefreshRunning is 1 while a refresh is in progress
	RefreshRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cohorts_refresh_running",
			Help: "Whether a report refresh is in progress (1=running, 0=idle)",
		},
	)

	// RecordsTotal tracks the size of each population in the last run
	RecordsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cohorts_records",
			Help: "Number of records per population in the last published run",
		},
		[]string{"stage"}, // stage: raw, headline, clean
	)

	// RecordsDropped tracks why records were excluded in the last run
	RecordsDropped = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cohorts_records_dropped",
			Help: "Number of records excluded from the clean set in the last published run",
		},
		[]string{"reason"},
	)

	// Periods tracks the number of emitted periods per granularity
	Periods = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cohorts_periods",
			Help: "Number of periods in the last published bundle",
		},
		[]string{"granularity"},
	)

	// LastPublish records when a bundle was last published
	LastPublish = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cohorts_last_publish_timestamp_seconds",
			Help: "Unix time of the last successful bundle publication",
		},
	)

	// SourceFetchDuration measures snapshot fetch time
	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cohorts_source_fetch_duration_seconds",
			Help:    "Time taken to fetch the input snapshot",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"source", "status"},
	)

	// TasksEnqueued counts refresh task enqueue attempts
	TasksEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cohorts_tasks_enqueued_total",
			Help: "Total number of refresh task enqueue attempts",
		},
		[]string{"trigger", "result"}, // result: queued, duplicate, error
	)

	// ErrorsTotal counts total number of errors
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cohorts_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordRefreshStart marks a refresh as running
func RecordRefreshStart() {
	RefreshRunning.Set(1)
}

// RecordRefreshComplete records the outcome of a refresh
func RecordRefreshComplete(trigger, status string, duration float64) {
	RefreshRunning.Set(0)
	RefreshTotal.WithLabelValues(trigger, status).Inc()
	RefreshDuration.WithLabelValues(status).Observe(duration)
}

// RecordRefreshSkipped records a refresh that did not run because another was in progress
func RecordRefreshSkipped(trigger string) {
	RefreshTotal.WithLabelValues(trigger, "skipped").Inc()
}

// RecordSourceFetch records a snapshot fetch
func RecordSourceFetch(source, status string, duration float64) {
	SourceFetchDuration.WithLabelValues(source, status).Observe(duration)
}

// RecordStats exports the population counts of a run
func RecordStats(stats records.Stats) {
	RecordsTotal.WithLabelValues("raw").Set(float64(stats.Raw))
	RecordsTotal.WithLabelValues("headline").Set(float64(stats.Headline))
	RecordsTotal.WithLabelValues("clean").Set(float64(stats.Clean))

	RecordsDropped.WithLabelValues("duplicate").Set(float64(stats.Duplicates))
	RecordsDropped.WithLabelValues("missing_customer_id").Set(float64(stats.MissingCustomerID))
	RecordsDropped.WithLabelValues("missing_email").Set(float64(stats.MissingEmail))
	RecordsDropped.WithLabelValues("malformed_timestamp").Set(float64(stats.MalformedTimestamp))
	RecordsDropped.WithLabelValues("malformed_value").Set(float64(stats.MalformedValue))
	RecordsDropped.WithLabelValues("denylisted").Set(float64(stats.Denylisted))
}

// RecordPublish records a successful publication
func RecordPublish(monthly, weekly int, at time.Time) {
	Periods.WithLabelValues("monthly").Set(float64(monthly))
	Periods.WithLabelValues("weekly").Set(float64(weekly))
	LastPublish.Set(float64(at.Unix()))
}

// RecordTaskEnqueued records a refresh task enqueue attempt
func RecordTaskEnqueued(trigger, result string) {
	TasksEnqueued.WithLabelValues(trigger, result).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
