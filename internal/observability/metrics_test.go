package observability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RunFinished("success", 10, 7)
	m.RunFinished("fail", 0, 0)
	m.RunFinished("success", 12, 9)
	m.BatchWritten("nodes", 1000)
	m.BatchWritten("nodes", 200)
	m.CommentLookup("bulk")
	m.CommentLookup("missing")
	m.CommentLookup("bulk")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("fail")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.GraphSize.WithLabelValues("nodes")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BatchesWritten.WithLabelValues("nodes")))
	assert.Equal(t, 1200.0, testutil.ToFloat64(m.RowsWritten.WithLabelValues("nodes")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommentLookups.WithLabelValues("bulk")))
}

func TestMetrics_PhaseHistogram(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObservePhase("load", 20*time.Millisecond)
	m.ObservePhase("write", 2*time.Second)

	assert.Equal(t, 2, testutil.CollectAndCount(m.PhaseDuration))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RunFinished("success", 3, 2)

	path := filepath.Join(t.TempDir(), "textfile", "replygraph.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `replygraph_pipeline_runs_total{status="success"} 1`)

	assert.NoError(t, m.WriteTextfile(""))
}
