package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/replygraph/replygraph/internal/database"
)

var statusCmd = &cobra.Command{
	Use:   "status [project-id]",
	Short: "Check store connectivity and show a project's run state",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	fmt.Printf("replygraph status\n")
	fmt.Printf("%s\n", strings.Repeat("═", 50))

	factory := newFactory()
	fmt.Printf("\nComment source (%s):\n", cfg.Database.Driver)
	dbOK := false
	if err := factory.Ping(ctx); err != nil {
		fmt.Printf("  Status: ❌ %v\n", err)
	} else {
		dbOK = true
		fmt.Printf("  Status: ✅ Connected\n")
	}

	fmt.Printf("\nNeo4j (%s):\n", cfg.Neo4j.URI)
	if err := newGraphClient().HealthCheck(ctx); err != nil {
		fmt.Printf("  Status: ❌ %v\n", err)
	} else {
		fmt.Printf("  Status: ✅ Connected\n")
	}

	if len(args) == 0 || !dbOK {
		return nil
	}

	project, err := database.NewStatusStore(factory, logger.Logger).GetProject(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("\nProject %s:\n", project.ID)
	fmt.Printf("  Name: %s\n", project.Name)
	fmt.Printf("  Status: %s\n", project.Status)
	if project.UpdateTime != nil {
		fmt.Printf("  Updated: %s\n", project.UpdateTime.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}
