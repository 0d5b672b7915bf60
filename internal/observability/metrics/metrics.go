package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "octopus_importer_"

// Cycle results used as label values.
const (
	ResultSuccess         = "success"
	ResultFetchError      = "fetch_error"
	ResultInvalidData     = "invalid_data"
	ResultCheckpointError = "checkpoint_error"
	ResultCommitError     = "commit_error"
	ResultSkippedBusy     = "skipped_busy"
)

var (
	registerOnce sync.Once

	cyclesTotal   *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec

	droppedRecords  prometheus.Counter
	committedPoints prometheus.Counter

	liveCumulative *prometheus.GaugeVec
)

// Init registers importer metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		cyclesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cycles_total",
				Help: "Import cycles by result",
			},
			[]string{"result"},
		)
		cycleDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "cycle_duration_seconds",
				Help:    "Import cycle duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		droppedRecords = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "dropped_records_total",
				Help: "Raw measurement records dropped as unparseable",
			},
		)
		committedPoints = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "committed_points_total",
				Help: "Cumulative points committed to the statistics store",
			},
		)
		liveCumulative = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "live_cumulative_kwh",
				Help: "Current cumulative consumption per account",
			},
			[]string{"account"},
		)

		prometheus.MustRegister(
			cyclesTotal,
			cycleDuration,
			droppedRecords,
			committedPoints,
			liveCumulative,
		)
	})
}

// ObserveCycle records one finished import cycle.
func ObserveCycle(result string, duration time.Duration) {
	if cyclesTotal == nil || cycleDuration == nil {
		return
	}
	cyclesTotal.WithLabelValues(result).Inc()
	cycleDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// AddDroppedRecords counts records dropped during normalization.
func AddDroppedRecords(n int) {
	if droppedRecords == nil || n <= 0 {
		return
	}
	droppedRecords.Add(float64(n))
}

// AddCommittedPoints counts points committed in a batch.
func AddCommittedPoints(n int) {
	if committedPoints == nil || n <= 0 {
		return
	}
	committedPoints.Add(float64(n))
}

// SetLiveCumulative publishes the live running sum for an account.
func SetLiveCumulative(account string, kwh float64) {
	if liveCumulative == nil || account == "" {
		return
	}
	liveCumulative.WithLabelValues(account).Set(kwh)
}
