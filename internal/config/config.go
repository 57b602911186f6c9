package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Relational comment source
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// Graph store connection
	Neo4j Neo4jConfig `mapstructure:"neo4j" yaml:"neo4j"`

	// Graph build settings
	Graph GraphConfig `mapstructure:"graph" yaml:"graph"`

	// Visualization export settings
	Export ExportConfig `mapstructure:"export" yaml:"export"`

	// Logging settings
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Local run journal
	RunLog RunLogConfig `mapstructure:"runlog" yaml:"runlog"`

	// Prometheus output
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

type DatabaseConfig struct {
	Driver            string `mapstructure:"driver" yaml:"driver"` // "pgx", "postgres", "sqlite3"
	DSN               string `mapstructure:"dsn" yaml:"dsn"`
	AuthorPlaceholder string `mapstructure:"author_placeholder" yaml:"author_placeholder"`
}

type Neo4jConfig struct {
	URI      string `mapstructure:"uri" yaml:"uri"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
	MaxPool  int    `mapstructure:"max_pool" yaml:"max_pool"`
}

type GraphConfig struct {
	PageRankDamping   float64 `mapstructure:"pagerank_damping" yaml:"pagerank_damping"`
	PageRankTolerance float64 `mapstructure:"pagerank_tolerance" yaml:"pagerank_tolerance"`
	PageRankMaxIter   int     `mapstructure:"pagerank_max_iterations" yaml:"pagerank_max_iterations"`
	CommunityMaxIter  int     `mapstructure:"community_max_iterations" yaml:"community_max_iterations"`
	CommunitySeed     int64   `mapstructure:"community_seed" yaml:"community_seed"` // 0 = random per run
	WeightedVotes     bool    `mapstructure:"weighted_votes" yaml:"weighted_votes"`
	NodeBatchSize     int     `mapstructure:"node_batch_size" yaml:"node_batch_size"`
	EdgeBatchSize     int     `mapstructure:"edge_batch_size" yaml:"edge_batch_size"`
	PruneStale        bool    `mapstructure:"prune_stale" yaml:"prune_stale"`
	TopK              int     `mapstructure:"top_k" yaml:"top_k"`
}

type ExportConfig struct {
	DefaultLimit       int     `mapstructure:"default_limit" yaml:"default_limit"`
	FallbackRPS        float64 `mapstructure:"fallback_rps" yaml:"fallback_rps"`
	MissingPlaceholder string  `mapstructure:"missing_placeholder" yaml:"missing_placeholder"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"` // "auto", "json", "text"
	OutputFile string `mapstructure:"output_file" yaml:"output_file"`
	MaxSize    int64  `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

type RunLogConfig struct {
	Path    string        `mapstructure:"path" yaml:"path"` // empty disables the journal
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type TelemetryConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"` // node_exporter textfile target
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Database: DatabaseConfig{
			Driver:            "pgx",
			AuthorPlaceholder: "unknown user",
		},
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			User:     "neo4j",
			Database: "neo4j",
			MaxPool:  50,
		},
		Graph: GraphConfig{
			PageRankDamping:   0.85,
			PageRankTolerance: 1e-9,
			PageRankMaxIter:   100,
			CommunityMaxIter:  100,
			NodeBatchSize:     1000,
			EdgeBatchSize:     1000,
			TopK:              10,
		},
		Export: ExportConfig{
			DefaultLimit:       5000,
			FallbackRPS:        50,
			MissingPlaceholder: "(no comment)",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "auto",
			MaxSize:    10 * 1024 * 1024, // 10MB
			MaxBackups: 3,
		},
		RunLog: RunLogConfig{
			Path:    filepath.Join(homeDir, ".replygraph", "runs.db"),
			Timeout: time.Second,
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	setDefaults(v, cfg)

	// Load from environment variables
	v.SetEnvPrefix("REPLYGRAPH")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".replygraph")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".replygraph"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// setDefaults registers every leaf key so AutomaticEnv can resolve it
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("database.driver", cfg.Database.Driver)
	v.SetDefault("database.dsn", cfg.Database.DSN)
	v.SetDefault("database.author_placeholder", cfg.Database.AuthorPlaceholder)

	v.SetDefault("neo4j.uri", cfg.Neo4j.URI)
	v.SetDefault("neo4j.user", cfg.Neo4j.User)
	v.SetDefault("neo4j.password", cfg.Neo4j.Password)
	v.SetDefault("neo4j.database", cfg.Neo4j.Database)
	v.SetDefault("neo4j.max_pool", cfg.Neo4j.MaxPool)

	v.SetDefault("graph.pagerank_damping", cfg.Graph.PageRankDamping)
	v.SetDefault("graph.pagerank_tolerance", cfg.Graph.PageRankTolerance)
	v.SetDefault("graph.pagerank_max_iterations", cfg.Graph.PageRankMaxIter)
	v.SetDefault("graph.community_max_iterations", cfg.Graph.CommunityMaxIter)
	v.SetDefault("graph.community_seed", cfg.Graph.CommunitySeed)
	v.SetDefault("graph.weighted_votes", cfg.Graph.WeightedVotes)
	v.SetDefault("graph.node_batch_size", cfg.Graph.NodeBatchSize)
	v.SetDefault("graph.edge_batch_size", cfg.Graph.EdgeBatchSize)
	v.SetDefault("graph.prune_stale", cfg.Graph.PruneStale)
	v.SetDefault("graph.top_k", cfg.Graph.TopK)

	v.SetDefault("export.default_limit", cfg.Export.DefaultLimit)
	v.SetDefault("export.fallback_rps", cfg.Export.FallbackRPS)
	v.SetDefault("export.missing_placeholder", cfg.Export.MissingPlaceholder)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output_file", cfg.Logging.OutputFile)
	v.SetDefault("logging.max_size", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)

	v.SetDefault("runlog.path", cfg.RunLog.Path)
	v.SetDefault("runlog.timeout", cfg.RunLog.Timeout)

	v.SetDefault("telemetry.textfile", cfg.Telemetry.Textfile)
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",       // Main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			// godotenv.Load never overrides variables that are already set
			_ = godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".replygraph", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		_ = godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies the unprefixed environment variables shared with
// the other services of the deployment
func applyEnvOverrides(cfg *Config) {
	// Relational source
	cfg.Database.Driver = GetString("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = GetString("DATABASE_DSN", cfg.Database.DSN)

	// Graph store
	cfg.Neo4j.URI = GetString("NEO4J_URI", cfg.Neo4j.URI)
	cfg.Neo4j.User = GetString("NEO4J_USER", cfg.Neo4j.User)
	cfg.Neo4j.Database = GetString("NEO4J_DATABASE", cfg.Neo4j.Database)

	// Precedence: 1. Env var (highest) 2. Config file 3. Keychain (lowest)
	if password := os.Getenv("NEO4J_PASSWORD"); password != "" {
		cfg.Neo4j.Password = password
	} else if cfg.Neo4j.Password == "" {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if stored, err := km.GetNeo4jPassword(); err == nil && stored != "" {
				cfg.Neo4j.Password = stored
			}
		}
	}

	// Graph build parameters
	cfg.Graph.PageRankDamping = GetFloat("GRAPH_PAGERANK_DAMPING", cfg.Graph.PageRankDamping)
	if size := GetInt("GRAPH_BATCH_SIZE", 0); size > 0 {
		cfg.Graph.NodeBatchSize = size
		cfg.Graph.EdgeBatchSize = size
	}
	cfg.Graph.PruneStale = GetBool("GRAPH_PRUNE_STALE", cfg.Graph.PruneStale)

	// Logging
	cfg.Logging.Level = GetString("LOG_LEVEL", cfg.Logging.Level)
	if path := os.Getenv("RUNLOG_PATH"); path != "" {
		cfg.RunLog.Path = expandPath(path)
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("database", c.Database)
	v.Set("neo4j", Neo4jConfig{URI: c.Neo4j.URI, User: c.Neo4j.User, Database: c.Neo4j.Database, MaxPool: c.Neo4j.MaxPool})
	v.Set("graph", c.Graph)
	v.Set("export", c.Export)
	v.Set("logging", c.Logging)
	v.Set("runlog", c.RunLog)
	v.Set("telemetry", c.Telemetry)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
