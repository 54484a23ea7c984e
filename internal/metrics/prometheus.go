package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job names used as label values.
const (
	JobIngest   = "ingest"
	JobBackfill = "backfill"
	JobExport   = "export"
	JobForecast = "forecast"
)

// Recorder records pipeline metrics with Prometheus. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	jobRuns        *prometheus.CounterVec
	symbolFailures *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	lastPrice      *prometheus.GaugeVec
	archivedRows   *prometheus.CounterVec
	forecasts      *prometheus.CounterVec
}

// New creates a Recorder whose collectors are registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		jobRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptopulse_job_runs_total",
				Help: "Total number of scheduled job runs",
			},
			[]string{"job"},
		),
		symbolFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptopulse_symbol_failures_total",
				Help: "Per-symbol failures inside job runs",
			},
			[]string{"job", "symbol"},
		),
		jobDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryptopulse_job_duration_seconds",
				Help:    "Duration of job runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptopulse_last_price",
				Help: "Last ingested price for a symbol",
			},
			[]string{"symbol"},
		),
		archivedRows: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptopulse_archived_rows_total",
				Help: "Price points written to archive partitions",
			},
			[]string{"symbol"},
		),
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptopulse_forecasts_written_total",
				Help: "Forecast records persisted",
			},
			[]string{"symbol"},
		),
	}
}

// RecordJobRun records one completed run of job taking seconds.
func (r *Recorder) RecordJobRun(job string, seconds float64) {
	if r == nil {
		return
	}
	r.jobRuns.WithLabelValues(job).Inc()
	r.jobDuration.WithLabelValues(job).Observe(seconds)
}

// RecordSymbolFailure records a caught per-symbol failure.
func (r *Recorder) RecordSymbolFailure(job, symbol string) {
	if r == nil {
		return
	}
	r.symbolFailures.WithLabelValues(job, symbol).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	if r == nil {
		return
	}
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordArchivedRows records rows written to a partition.
func (r *Recorder) RecordArchivedRows(symbol string, n int) {
	if r == nil {
		return
	}
	r.archivedRows.WithLabelValues(symbol).Add(float64(n))
}

// RecordForecasts records forecast records written for symbol.
func (r *Recorder) RecordForecasts(symbol string, n int) {
	if r == nil {
		return
	}
	r.forecasts.WithLabelValues(symbol).Add(float64(n))
}
