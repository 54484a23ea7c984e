package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordJobRun(JobIngest, 0.2)
	r.RecordJobRun(JobIngest, 0.3)
	r.RecordSymbolFailure(JobIngest, "BTCUSDT")
	r.RecordLastPrice("ETHUSDT", 2000.5)
	r.RecordArchivedRows("ETHUSDT", 60)
	r.RecordForecasts("ETHUSDT", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.jobRuns.WithLabelValues(JobIngest)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.symbolFailures.WithLabelValues(JobIngest, "BTCUSDT")))
	assert.Equal(t, 2000.5, testutil.ToFloat64(r.lastPrice.WithLabelValues("ETHUSDT")))
	assert.Equal(t, 60.0, testutil.ToFloat64(r.archivedRows.WithLabelValues("ETHUSDT")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.forecasts.WithLabelValues("ETHUSDT")))

	n, err := testutil.GatherAndCount(reg, "cryptopulse_job_duration_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordJobRun(JobExport, 1)
		r.RecordSymbolFailure(JobExport, "X")
		r.RecordLastPrice("X", 1)
		r.RecordArchivedRows("X", 1)
		r.RecordForecasts("X", 3)
	})
}
