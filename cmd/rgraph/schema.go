package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/replygraph/replygraph/internal/config"
	"github.com/replygraph/replygraph/internal/graph"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the Neo4j constraint and the local comment tables",
	Long: `Create the (name, project_id) uniqueness constraint on :User in Neo4j.
With the sqlite3 driver the comment and project tables are created as well,
which is enough for local runs against a file database.`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
	if err := cfg.Require(config.ValidationContextSchema); err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	if cfg.Database.DSN != "" {
		created, err := newFactory().EnsureLocalSchema(ctx)
		if err != nil {
			return err
		}
		if created {
			fmt.Printf("✓ Local comment tables ready (%s)\n", cfg.Database.DSN)
		}
	}

	writer := graph.NewWriter(newGraphClient().Dial, graph.WriterOptions{}, logger.Logger)
	if err := writer.EnsureSchema(ctx); err != nil {
		return err
	}
	fmt.Println("✓ Neo4j constraints ready")
	return nil
}
