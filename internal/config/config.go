// Package config loads the digitgraph YAML configuration.
//
// Values may reference environment variables (${NEO4J_PASSWORD}); they are
// expanded before parsing. Unknown keys are rejected so typos do not pass
// silently.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sanonone/digitgraph/pkg/distance"
	"github.com/sanonone/digitgraph/pkg/layout"
	"github.com/sanonone/digitgraph/pkg/sampler"
)

// Config is the top-level structure of the configuration file.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Dataset DatasetConfig `yaml:"dataset"`
	View    ViewConfig    `yaml:"view"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the HTTP interface.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"` // empty disables auth
	// RateLimit is the steady number of API requests per second per client
	// address. 0 disables limiting.
	RateLimit  float64 `yaml:"rate_limit"`
	RateBurst  int     `yaml:"rate_burst"`
	SessionTTL string  `yaml:"session_ttl"` // "30m"
}

// DatasetConfig selects and configures the graph data source.
type DatasetConfig struct {
	Type       string      `yaml:"type"` // "json", "sqlite", "neo4j"
	NodesPath  string      `yaml:"nodes_path"`
	GraphPath  string      `yaml:"graph_path"`
	SQLitePath string      `yaml:"sqlite_path"`
	Precision  string      `yaml:"precision"` // "float32", "float16"
	Neo4j      Neo4jConfig `yaml:"neo4j"`
}

// Neo4jConfig holds the connection settings for the neo4j dataset type.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Label    string `yaml:"label"`
	Relation string `yaml:"relation"`
}

// ViewConfig tunes the navigation view.
type ViewConfig struct {
	DefaultNodeID    string  `yaml:"default_node_id"`
	DisplayCap       int     `yaml:"display_cap"`
	Radius           float64 `yaml:"radius"`
	FetchConcurrency int     `yaml:"fetch_concurrency"`
	Metric           string  `yaml:"metric"`      // "euclidean", "cosine"
	MainScale        int     `yaml:"main_scale"`  // 28px * 8 = 224px
	ThumbScale       int     `yaml:"thumb_scale"` // 28px * 2 = 56px
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns the reference configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       ":9091",
			RateLimit:  20,
			RateBurst:  40,
			SessionTTL: "30m",
		},
		Dataset: DatasetConfig{
			Type:      "json",
			NodesPath: "data/nodes.json",
			GraphPath: "data/graph.json",
			Precision: string(distance.Float32),
			Neo4j: Neo4jConfig{
				URI:      "neo4j://localhost:7687",
				Username: "neo4j",
				Database: "neo4j",
				Label:    "Digit",
				Relation: "SIMILAR",
			},
		},
		View: ViewConfig{
			DefaultNodeID:    "0",
			DisplayCap:       sampler.DefaultLimit,
			Radius:           layout.DefaultRadius,
			FetchConcurrency: 1,
			Metric:           string(distance.Euclidean),
			MainScale:        8,
			ThumbScale:       2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadEnv loads KEY=VALUE pairs from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("could not load env file '%s': %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML file at path on top of Default. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read configuration file '%s': %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("YAML syntax error in '%s': %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in '%s': %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Dataset.Type {
	case "json":
		if c.Dataset.NodesPath == "" {
			return fmt.Errorf("dataset.nodes_path is required for json datasets")
		}
	case "sqlite":
		if c.Dataset.SQLitePath == "" {
			return fmt.Errorf("dataset.sqlite_path is required for sqlite datasets")
		}
	case "neo4j":
		if c.Dataset.Neo4j.URI == "" {
			return fmt.Errorf("dataset.neo4j.uri is required for neo4j datasets")
		}
	default:
		return fmt.Errorf("unknown dataset type '%s'", c.Dataset.Type)
	}
	if _, err := distance.ParsePrecision(c.Dataset.Precision); err != nil {
		return fmt.Errorf("dataset.precision: %w", err)
	}
	if _, err := distance.GetFunc(distance.Metric(c.View.Metric)); err != nil {
		return fmt.Errorf("view.metric: %w", err)
	}
	if c.View.DisplayCap < 1 {
		return fmt.Errorf("view.display_cap must be at least 1")
	}
	if c.View.Radius <= 0 || c.View.Radius > 50 {
		return fmt.Errorf("view.radius must be in (0, 50]")
	}
	if c.View.MainScale < 1 || c.View.ThumbScale < 1 {
		return fmt.Errorf("view.main_scale and view.thumb_scale must be at least 1")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}
	if _, err := c.SessionTTL(); err != nil {
		return err
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json'")
	}
	return nil
}

// SessionTTL parses server.session_ttl. Zero disables session expiry.
func (c *Config) SessionTTL() (time.Duration, error) {
	if c.Server.SessionTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Server.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("server.session_ttl: %w", err)
	}
	return d, nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}
