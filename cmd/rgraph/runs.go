package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	runsLimit  int
	runsFormat string
)

var runsCmd = &cobra.Command{
	Use:   "runs [project-id]",
	Short: "List recorded builds, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum number of runs (0 = all)")
	runsCmd.Flags().StringVar(&runsFormat, "format", "table", "output format (table, json, yaml)")
}

func runRuns(cmd *cobra.Command, args []string) error {
	projectID := ""
	if len(args) == 1 {
		projectID = args[0]
	}

	journal, err := openJournal()
	if err != nil {
		return err
	}
	if journal == nil {
		return fmt.Errorf("run journal is disabled (runlog.path is empty)")
	}
	defer journal.Close()

	runs, err := journal.List(projectID, runsLimit)
	if err != nil {
		return err
	}

	if runsFormat != "table" {
		return writeOutput(os.Stdout, runs, runsFormat)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tPROJECT\tSTATUS\tNODES\tEDGES\tDURATION\tRUN ID")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.ProjectID,
			run.Status,
			run.NodeCount,
			run.EdgeCount,
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
			run.RunID,
		)
	}
	return w.Flush()
}
