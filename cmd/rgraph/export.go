package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/replygraph/replygraph/internal/config"
	"github.com/replygraph/replygraph/internal/database"
	"github.com/replygraph/replygraph/internal/graph"
)

var (
	exportLimit  int
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export <project-id>",
	Short: "Export the top users of a stored project graph",
	Long: `Read the highest-importance users of a project from Neo4j together with
the links among them. Every user carries a representative comment.

Examples:
  rgraph export 42
  rgraph export 42 --limit 200 --output graph.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "maximum number of users (default from export.default_limit)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
	projectID := args[0]
	if err := cfg.Require(config.ValidationContextExport); err != nil {
		return err
	}
	if exportLimit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	ctx, cancel := commandContext()
	defer cancel()

	telemetry := newTelemetry()
	defer flushTelemetry(telemetry)

	comments := database.NewCommentStore(newFactory(), cfg.Database.AuthorPlaceholder, logger.Logger)
	exporter := graph.NewExporter(newGraphClient().Dial, comments, graph.ExporterOptions{
		DefaultLimit:       cfg.Export.DefaultLimit,
		FallbackRPS:        cfg.Export.FallbackRPS,
		MissingPlaceholder: cfg.Export.MissingPlaceholder,
		Recorder:           telemetry,
	}, logger.Logger)

	view, err := exporter.Export(ctx, projectID, exportLimit)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportOutput, err)
		}
		defer f.Close()
		out = f
	}
	return writeOutput(out, view, "json")
}
