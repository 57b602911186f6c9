package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/replygraph/replygraph/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage replygraph configuration",
	Long:  `View configuration, write a config file and manage the Neo4j password in the OS keychain.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the effective configuration to a file",
	Long: `Write the effective configuration to a YAML file. The Neo4j password is
never written; keep it in NEO4J_PASSWORD or the OS keychain.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that build and export settings are complete",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configSetPasswordCmd = &cobra.Command{
	Use:   "set-password",
	Short: "Store the Neo4j password in the OS keychain",
	Args:  cobra.NoArgs,
	RunE:  runConfigSetPassword,
}

var configDeletePasswordCmd = &cobra.Command{
	Use:   "delete-password",
	Short: "Remove the Neo4j password from the OS keychain",
	Args:  cobra.NoArgs,
	RunE:  runConfigDeletePassword,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configSetPasswordCmd)
	configCmd.AddCommand(configDeletePasswordCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	shown := *cfg
	shown.Neo4j.Password = config.MaskSecret(cfg.Neo4j.Password)
	return writeOutput(os.Stdout, shown, "yaml")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := filepath.Join(".replygraph", "config.yaml")
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Printf("✓ Configuration written to %s\n", path)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	failed := false
	for _, vc := range []config.ValidationContext{
		config.ValidationContextBuild,
		config.ValidationContextExport,
	} {
		result := cfg.Validate(vc)
		if result.HasErrors() {
			failed = true
			fmt.Printf("✗ %s\n%s", vc, result.Error())
			continue
		}
		fmt.Printf("✓ %s\n", vc)
		for _, w := range result.Warnings {
			fmt.Printf("  ⚠ %s\n", w)
		}
	}
	if failed {
		return fmt.Errorf("configuration is incomplete")
	}
	return nil
}

func runConfigSetPassword(cmd *cobra.Command, args []string) error {
	km := config.NewKeyringManager()
	if !km.IsAvailable() {
		return fmt.Errorf("OS keychain is not available, set NEO4J_PASSWORD instead")
	}

	fmt.Print("Neo4j password: ")
	password, err := readSecurely()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if err := km.SetNeo4jPassword(password); err != nil {
		return err
	}
	fmt.Println("✓ Saved to keychain")
	return nil
}

func runConfigDeletePassword(cmd *cobra.Command, args []string) error {
	if err := config.NewKeyringManager().DeleteNeo4jPassword(); err != nil {
		return err
	}
	fmt.Println("✓ Removed from keychain")
	return nil
}

// readSecurely reads a secret from stdin without echoing
func readSecurely() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		bytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	// piped input
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
