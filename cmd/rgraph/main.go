package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/replygraph/replygraph/internal/config"
	"github.com/replygraph/replygraph/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	logger  *logging.Logger
	cfg     *config.Config
)

func main() {
	err := rootCmd.Execute()
	if logger != nil {
		logger.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rgraph",
	Short: "replygraph - comment reply graphs for projects",
	Long: `replygraph turns the comments of a project into a user interaction graph,
scores every user, finds communities, stores the result in Neo4j and exports
bounded views for visualization.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}

		logger, err = logging.New(logging.Config{
			Level:      cfg.Logging.Level,
			Format:     cfg.Logging.Format,
			OutputFile: cfg.Logging.OutputFile,
			MaxSize:    cfg.Logging.MaxSize,
			MaxBackups: cfg.Logging.MaxBackups,
		})
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .replygraph/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`replygraph {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}
