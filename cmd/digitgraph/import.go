package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sanonone/digitgraph/pkg/dataset"
	"github.com/sanonone/digitgraph/pkg/distance"
)

var (
	importNodes string
	importGraph string
	importOut   string
)

func init() {
	importCmd.Flags().StringVar(&importNodes, "nodes", "", "JSON file mapping node id to its 784 values (default dataset.nodes_path)")
	importCmd.Flags().StringVar(&importGraph, "graph", "", "JSON file mapping node id to its neighbor ids (default dataset.graph_path)")
	importCmd.Flags().StringVarP(&importOut, "out", "o", "", "SQLite database to write (default dataset.sqlite_path)")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import-sqlite",
	Short: "Convert JSON node and graph files into a SQLite dataset",
	Long: `Load the JSON node vectors and adjacency lists and write them to a SQLite
database usable with dataset.type: sqlite. Existing nodes are replaced and
their adjacency lists rewritten.

Examples:
  digitgraph import-sqlite --nodes data/nodes.json --graph data/graph.json -o data/mnist.db`,
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	nodes := firstNonEmpty(importNodes, cfg.Dataset.NodesPath)
	graph := firstNonEmpty(importGraph, cfg.Dataset.GraphPath)
	out := firstNonEmpty(importOut, cfg.Dataset.SQLitePath)
	if nodes == "" || out == "" {
		return withExitCode(ExitConfigError, errors.New("both --nodes and --out are required"))
	}

	// Keep full precision in transit; the SQLite blobs are float32.
	src := dataset.NewJSONSource(nodes, graph, distance.Float32)
	if err := src.Prime(cmd.Context()); err != nil {
		return withExitCode(ExitDataError, err)
	}

	db := dataset.NewSQLiteSource(out)
	defer db.Close()
	if err := db.Prime(cmd.Context()); err != nil {
		return err
	}

	n, err := db.Import(cmd.Context(), src.MemoryStore)
	if err != nil {
		return fmt.Errorf("importing into %s: %w", out, err)
	}

	if humanOutput {
		outputHuman("Imported %d nodes into %s\n", n, out)
		return nil
	}
	return outputJSON(map[string]any{"imported": n, "path": out})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
