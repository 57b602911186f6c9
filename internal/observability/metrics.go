package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "replygraph"

// Metrics holds the pipeline's Prometheus collectors
type Metrics struct {
	RunsTotal      *prometheus.CounterVec
	PhaseDuration  *prometheus.HistogramVec
	BatchesWritten *prometheus.CounterVec
	RowsWritten    *prometheus.CounterVec
	CommentLookups *prometheus.CounterVec
	GraphSize      *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates the collectors and registers them on reg
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Total number of project graph builds by outcome",
			},
			[]string{"status"},
		),

		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "phase_duration_seconds",
				Help:      "Duration of each pipeline phase in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"phase"},
		),

		BatchesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "graph",
				Name:      "batches_written_total",
				Help:      "Total number of UNWIND batches sent to the graph store",
			},
			[]string{"kind"},
		),

		RowsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "graph",
				Name:      "rows_written_total",
				Help:      "Total number of node and edge rows sent to the graph store",
			},
			[]string{"kind"},
		),

		CommentLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "export",
				Name:      "comment_lookups_total",
				Help:      "Representative comment lookups by source (bulk, fallback, missing)",
			},
			[]string{"source"},
		),

		GraphSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "graph",
				Name:      "last_build_size",
				Help:      "Node and edge count of the last successful build",
			},
			[]string{"kind"},
		),

		registry: reg,
	}

	reg.MustRegister(
		m.RunsTotal,
		m.PhaseDuration,
		m.BatchesWritten,
		m.RowsWritten,
		m.CommentLookups,
		m.GraphSize,
	)
	return m
}

// RunFinished counts a finished build
func (m *Metrics) RunFinished(status string, nodes, edges int) {
	m.RunsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		m.GraphSize.WithLabelValues("nodes").Set(float64(nodes))
		m.GraphSize.WithLabelValues("edges").Set(float64(edges))
	}
}

// ObservePhase records how long a pipeline phase took
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// BatchWritten counts one write batch of the given kind
func (m *Metrics) BatchWritten(kind string, rows int) {
	m.BatchesWritten.WithLabelValues(kind).Inc()
	m.RowsWritten.WithLabelValues(kind).Add(float64(rows))
}

// CommentLookup counts one export enrichment lookup
func (m *Metrics) CommentLookup(source string) {
	m.CommentLookups.WithLabelValues(source).Inc()
}

// WriteTextfile dumps the registry in the node_exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create textfile directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
