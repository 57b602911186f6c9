package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/replygraph/replygraph/internal/database"
	"github.com/replygraph/replygraph/internal/graph"
	"github.com/replygraph/replygraph/internal/metrics"
	"github.com/replygraph/replygraph/internal/observability"
	"github.com/replygraph/replygraph/internal/runlog"
)

// commandContext is cancelled on Ctrl-C or SIGTERM
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newFactory() *database.Factory {
	return database.NewFactory(cfg.Database.Driver, cfg.Database.DSN, logger.Logger)
}

func newGraphClient() *graph.Client {
	return graph.NewClient(graph.ClientConfig{
		URI:      cfg.Neo4j.URI,
		User:     cfg.Neo4j.User,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
		MaxPool:  cfg.Neo4j.MaxPool,
	}, logger.Logger)
}

func newTelemetry() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

// flushTelemetry writes the textfile when one is configured
func flushTelemetry(m *observability.Metrics) {
	if err := m.WriteTextfile(cfg.Telemetry.Textfile); err != nil {
		logger.WithError(err).Warn("failed to write metrics textfile")
	}
}

func openJournal() (*runlog.Journal, error) {
	if cfg.RunLog.Path == "" {
		return nil, nil
	}
	return runlog.Open(cfg.RunLog.Path, cfg.RunLog.Timeout, logger.Logger)
}

func metricsConfig() metrics.Config {
	return metrics.Config{
		Damping:                cfg.Graph.PageRankDamping,
		Tolerance:              cfg.Graph.PageRankTolerance,
		MaxIterations:          cfg.Graph.PageRankMaxIter,
		CommunityMaxIterations: cfg.Graph.CommunityMaxIter,
		CommunitySeed:          cfg.Graph.CommunitySeed,
		WeightedVotes:          cfg.Graph.WeightedVotes,
	}
}

// writeOutput renders v as json or yaml
func writeOutput(w io.Writer, v any, format string) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q (use json or yaml)", format)
	}
}
