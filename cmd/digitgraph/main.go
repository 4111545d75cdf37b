// Package main provides the digitgraph CLI entry point.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sanonone/digitgraph/internal/config"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	configPath  string
	envFile     string
	humanOutput bool

	// cfg is loaded by the root command before any subcommand runs.
	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitWithError(exitCode(err), "%v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "digitgraph",
	Short: "Navigate a similarity graph of handwritten digits",
	Long: `digitgraph serves a browser viewer for a k-nearest-neighbor graph of
MNIST digits. Every node is a 28x28 image; clicking one of the thumbnails
arranged around the current digit moves the view to that neighbor.

The graph can be loaded from JSON files, a SQLite database or Neo4j.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file loaded before the configuration")
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnv(envFile); err != nil {
		return withExitCode(ExitConfigError, err)
	}
	if configPath == "" {
		configPath = os.Getenv("DIGITGRAPH_CONFIG")
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	cfg = loaded

	setupLogging(cfg.Logging)
	return nil
}

// setupLogging installs the process-wide slog handler. The configuration is
// already validated, so the level always parses.
func setupLogging(lc config.LoggingConfig) {
	level, _ := config.ParseLevel(lc.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
