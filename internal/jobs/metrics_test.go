package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := map[string]float64{}
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			key := fam.GetName()
			for _, lp := range m.GetLabel() {
				key += "|" + lp.GetName() + "=" + lp.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("count:backup").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("count:backup").End(boom), boom)
	m.AddBackupRows("loja-1", 4)
	m.AddBackupRows("", 2)
	m.AddBackupRows("loja-1", 0)

	got := gather(t, reg)
	require.Equal(t, float64(1), got["stockcount_jobs_total|job=count:backup|status=success"])
	require.Equal(t, float64(1), got["stockcount_jobs_total|job=count:backup|status=failure"])
	require.Equal(t, float64(1), got["stockcount_jobs_failures_total|job=count:backup"])
	require.Equal(t, float64(2), got["stockcount_job_duration_seconds|job=count:backup"])
	require.Equal(t, float64(4), got["stockcount_backup_rows_total|location=loja-1"])
	require.Equal(t, float64(2), got["stockcount_backup_rows_total|location=unknown"])
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Track("x").End(nil))
	m.AddBackupRows("loja-1", 1)
}
