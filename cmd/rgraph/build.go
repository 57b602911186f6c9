package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/replygraph/replygraph/internal/config"
	"github.com/replygraph/replygraph/internal/database"
	"github.com/replygraph/replygraph/internal/errors"
	"github.com/replygraph/replygraph/internal/graph"
	"github.com/replygraph/replygraph/internal/models"
	"github.com/replygraph/replygraph/internal/pipeline"
)

var (
	buildReset  bool
	buildPrune  bool
	buildFormat string
)

var buildCmd = &cobra.Command{
	Use:   "build <project-id>",
	Short: "Build and store the interaction graph of a project",
	Long: `Load the comments of a project, build the reply graph, compute degree,
importance score and communities, and upsert everything into Neo4j.

Repeated builds overwrite user attributes and add to stored edge weights.
Use --reset for an exact rebuild.

Examples:
  rgraph build 42
  rgraph build 42 --reset --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildReset, "reset", false, "replace the stored project graph instead of merging into it")
	buildCmd.Flags().BoolVar(&buildPrune, "prune", false, "delete stored users missing from this build")
	buildCmd.Flags().StringVar(&buildFormat, "format", "json", "summary format (json, yaml)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	projectID := args[0]
	if err := cfg.Require(config.ValidationContextBuild); err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	factory := newFactory()
	telemetry := newTelemetry()
	defer flushTelemetry(telemetry)

	writer := graph.NewWriter(newGraphClient().Dial, graph.WriterOptions{
		Batch: graph.BatchConfig{
			NodeBatchSize: cfg.Graph.NodeBatchSize,
			EdgeBatchSize: cfg.Graph.EdgeBatchSize,
		},
		PruneStale: cfg.Graph.PruneStale || buildPrune,
		ResetFirst: buildReset,
		Recorder:   telemetry,
	}, logger.Logger)

	opts := pipeline.Options{
		Metrics:   metricsConfig(),
		TopK:      cfg.Graph.TopK,
		Telemetry: telemetry,
	}
	journal, err := openJournal()
	if err != nil {
		logger.WithError(err).Warn("run journal unavailable, run will not be recorded")
	} else if journal != nil {
		defer journal.Close()
		opts.Journal = journal
	}

	ctrl := pipeline.NewController(
		database.NewCommentStore(factory, cfg.Database.AuthorPlaceholder, logger.Logger),
		database.NewStatusStore(factory, logger.Logger),
		writer,
		opts,
		logger.Logger,
	)

	summary, err := ctrl.BuildGraphForProject(ctx, projectID)
	if err != nil {
		return err
	}
	if err := writeOutput(os.Stdout, summary, buildFormat); err != nil {
		return err
	}
	if summary.Status == models.ProjectStatusFail {
		return errors.DataUnavailablef("%s", summary.Message)
	}
	fmt.Fprintln(os.Stderr, summary.Message)
	return nil
}
