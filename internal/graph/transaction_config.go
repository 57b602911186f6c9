package graph

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Operation names used for transaction configs and logging
const (
	OpGraphWrite  = "graph_write"
	OpGraphExport = "graph_export"
	OpSchema      = "schema"
	OpHealthCheck = "health_check"
)

// TransactionConfig defines timeout and metadata for transactions
//
// Transaction metadata is logged by Neo4j and visible in query.log
// This helps with debugging slow queries and categorizing operations.
type TransactionConfig struct {
	Timeout  time.Duration
	Metadata map[string]any
}

// DefaultTransactionConfigs returns recommended configs per operation type
func DefaultTransactionConfigs() map[string]TransactionConfig {
	return map[string]TransactionConfig{
		// Whole-project upsert: all node and edge batches in one transaction
		OpGraphWrite: {
			Timeout: 10 * time.Minute,
			Metadata: map[string]any{
				"operation": OpGraphWrite,
				"type":      "write",
			},
		},

		// Visualization reads
		OpGraphExport: {
			Timeout: 60 * time.Second,
			Metadata: map[string]any{
				"operation": OpGraphExport,
				"type":      "read",
			},
		},

		// Constraint creation
		OpSchema: {
			Timeout: 5 * time.Minute, // Index creation can be slow on large graphs
			Metadata: map[string]any{
				"operation": OpSchema,
				"type":      "schema",
			},
		},

		OpHealthCheck: {
			Timeout: 5 * time.Second, // Health checks must be fast
			Metadata: map[string]any{
				"operation": OpHealthCheck,
				"type":      "read",
			},
		},
	}
}

// AsNeo4jConfig converts to Neo4j transaction config functions
// Use with BeginTransaction or ExecuteRead/ExecuteWrite
func (tc TransactionConfig) AsNeo4jConfig() []func(*neo4j.TransactionConfig) {
	configs := []func(*neo4j.TransactionConfig){}

	if tc.Timeout > 0 {
		configs = append(configs, neo4j.WithTxTimeout(tc.Timeout))
	}

	if len(tc.Metadata) > 0 {
		configs = append(configs, neo4j.WithTxMetadata(tc.Metadata))
	}

	return configs
}

// GetConfigForOperation retrieves the appropriate transaction config
// Returns default config if operation not found
func GetConfigForOperation(operation string) TransactionConfig {
	configs := DefaultTransactionConfigs()
	if config, ok := configs[operation]; ok {
		return config
	}

	return TransactionConfig{
		Timeout: 60 * time.Second,
		Metadata: map[string]any{
			"operation": operation,
			"type":      "unknown",
		},
	}
}
