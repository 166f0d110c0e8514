// Package config loads ingestion settings from config files, .env files,
// and environment variables, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/codegraph/codegraph-go/internal/errors"
	"github.com/codegraph/codegraph-go/internal/reconcile"
)

// Config holds all configuration settings
type Config struct {
	// Graph database connection
	Graph GraphConfig `yaml:"graph" mapstructure:"graph"`

	// Audit trail persistence
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Ingestion behavior
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
}

type GraphConfig struct {
	URI      string `yaml:"uri" mapstructure:"uri"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
}

type AuditConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Backend     string `yaml:"backend" mapstructure:"backend"` // "postgres", "sqlite"
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

type IngestConfig struct {
	Workers        int    `yaml:"workers" mapstructure:"workers"`
	Mode           string `yaml:"mode" mapstructure:"mode"` // upsert, insert_only, update_only
	Source         string `yaml:"source" mapstructure:"source"`
	AnnotationWins string `yaml:"annotation_wins" mapstructure:"annotation_wins"` // first-seen, last-seen
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Graph: GraphConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Audit: AuditConfig{
			Enabled:    false,
			Backend:    "sqlite",
			SQLitePath: ".codegraph/audit.db",
		},
		Ingest: IngestConfig{
			Workers:        4,
			Mode:           "upsert",
			Source:         "ingest",
			AnnotationWins: "first-seen",
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults
	cfg := Default()
	v.SetDefault("graph", cfg.Graph)
	v.SetDefault("audit", cfg.Audit)
	v.SetDefault("ingest", cfg.Ingest)

	// Load from environment variables
	v.SetEnvPrefix("CODEGRAPH")
	v.AutomaticEnv()

	// Try to find config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath(".codegraph")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".codegraph"))
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	// Unmarshal into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with. Called at
// load so mode typos fail before any graph write.
func (c *Config) Validate() error {
	if _, err := reconcile.ParseMode(c.Ingest.Mode); err != nil {
		return err
	}
	if c.Ingest.Workers < 1 {
		return errors.InvalidConfigurationf("ingest workers must be positive, got %d", c.Ingest.Workers)
	}
	switch c.Ingest.AnnotationWins {
	case "", "first-seen", "last-seen":
	default:
		return errors.InvalidConfigurationf("unknown annotation merge strategy %q (want first-seen or last-seen)", c.Ingest.AnnotationWins)
	}
	if c.Audit.Enabled {
		switch c.Audit.Backend {
		case "postgres":
			if c.Audit.PostgresDSN == "" {
				return errors.InvalidConfiguration("audit backend postgres requires audit.postgres_dsn")
			}
		case "sqlite":
			if c.Audit.SQLitePath == "" {
				return errors.InvalidConfiguration("audit backend sqlite requires audit.sqlite_path")
			}
		default:
			return errors.InvalidConfigurationf("unknown audit backend %q (want postgres or sqlite)", c.Audit.Backend)
		}
	}
	return nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",       // Main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	// Also try loading from home directory
	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".codegraph", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Graph.URI = uri
	}
	if user := os.Getenv("NEO4J_USERNAME"); user != "" {
		cfg.Graph.Username = user
	}
	if password := os.Getenv("NEO4J_PASSWORD"); password != "" {
		cfg.Graph.Password = password
	}
	if database := os.Getenv("NEO4J_DATABASE"); database != "" {
		cfg.Graph.Database = database
	}

	if dsn := os.Getenv("CODEGRAPH_AUDIT_DSN"); dsn != "" {
		cfg.Audit.Enabled = true
		cfg.Audit.Backend = "postgres"
		cfg.Audit.PostgresDSN = dsn
	}
	if workers := os.Getenv("CODEGRAPH_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			cfg.Ingest.Workers = n
		}
	}
	if mode := os.Getenv("CODEGRAPH_MODE"); mode != "" {
		cfg.Ingest.Mode = mode
	}
}
