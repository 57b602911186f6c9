package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/replygraph/replygraph/internal/errors"
)

// ValidationContext specifies what configuration is required
type ValidationContext string

const (
	// ValidationContextBuild - rgraph build needs the comment source and Neo4j
	ValidationContextBuild ValidationContext = "build"
	// ValidationContextExport - rgraph export needs Neo4j and the comment source for enrichment
	ValidationContextExport ValidationContext = "export"
	// ValidationContextSchema - rgraph schema needs Neo4j
	ValidationContextSchema ValidationContext = "schema"
)

var supportedDrivers = map[string]bool{
	"pgx":      true,
	"postgres": true,
	"sqlite3":  true,
}

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}

	return sb.String()
}

// Validate validates configuration for the given context
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextBuild:
		c.validateDatabase(result)
		c.validateNeo4j(result)
		c.validateGraph(result)
	case ValidationContextExport:
		c.validateDatabase(result)
		c.validateNeo4j(result)
		c.validateExport(result)
	case ValidationContextSchema:
		c.validateNeo4j(result)
	}

	return result
}

// Require returns a config error when validation for ctx fails
func (c *Config) Require(ctx ValidationContext) error {
	result := c.Validate(ctx)
	if result.HasErrors() {
		return errors.ConfigError(result.Error())
	}
	return nil
}

func (c *Config) validateDatabase(result *ValidationResult) {
	if !supportedDrivers[c.Database.Driver] {
		result.AddError("DATABASE_DRIVER %q is not supported (use pgx, postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		result.AddError("DATABASE_DSN is required but not set")
		return
	}
	if c.Database.Driver != "sqlite3" && strings.Contains(c.Database.DSN, "sslmode=disable") {
		result.AddWarning("DATABASE_DSN has sslmode=disable")
	}
}

func (c *Config) validateNeo4j(result *ValidationResult) {
	if c.Neo4j.URI == "" {
		result.AddError("NEO4J_URI is required but not set")
	} else if _, err := url.Parse(c.Neo4j.URI); err != nil {
		result.AddError("NEO4J_URI is invalid: %v", err)
	}

	if c.Neo4j.User == "" {
		result.AddError("NEO4J_USER is required but not set")
	}

	if c.Neo4j.Password == "" {
		result.AddError("NEO4J_PASSWORD is required but not set. Set it via environment variable, .env file or the OS keychain.")
	} else if c.Neo4j.Password == "neo4j" || c.Neo4j.Password == "password" {
		result.AddWarning("NEO4J_PASSWORD is set to a very common password (%s)", c.Neo4j.Password)
	}

	if c.Neo4j.Database == "" {
		result.AddWarning("NEO4J_DATABASE is not set, the server default database will be used")
	}
}

func (c *Config) validateGraph(result *ValidationResult) {
	if c.Graph.PageRankDamping <= 0 || c.Graph.PageRankDamping >= 1 {
		result.AddError("graph.pagerank_damping must be in (0, 1), got %v", c.Graph.PageRankDamping)
	}
	if c.Graph.NodeBatchSize <= 0 || c.Graph.EdgeBatchSize <= 0 {
		result.AddError("graph batch sizes must be positive (nodes=%d, edges=%d)", c.Graph.NodeBatchSize, c.Graph.EdgeBatchSize)
	}
	if c.Graph.PruneStale {
		result.AddWarning("graph.prune_stale is enabled: users missing from the latest comments will be deleted")
	}
}

func (c *Config) validateExport(result *ValidationResult) {
	if c.Export.DefaultLimit <= 0 {
		result.AddError("export.default_limit must be positive, got %d", c.Export.DefaultLimit)
	}
	if c.Export.FallbackRPS <= 0 {
		result.AddWarning("export.fallback_rps is %v, fallback comment lookups are not throttled", c.Export.FallbackRPS)
	}
}
