package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sanonone/digitgraph/internal/server"
)

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP viewer",
	Long: `Start the HTTP server with the browser viewer and the JSON API.

The dataset is loaded once in the background; sessions opened before it is
ready stay in the loading state until it is.

Examples:
  digitgraph serve
  digitgraph serve --config digitgraph.yaml --addr :8080`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	src, closeSrc, err := openSource(cfg.Dataset)
	if err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("opening dataset: %w", err))
	}
	defer closeSrc()

	srv, err := server.NewServer(src, cfg)
	if err != nil {
		return err
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-shutdownChan:
		slog.Info("Received signal", "signal", sig.String())
	}

	srv.Shutdown()
	return <-errCh
}
