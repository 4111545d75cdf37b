package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sanonone/digitgraph/pkg/imaging"
)

var (
	renderScale int
	renderOut   string
)

func init() {
	renderCmd.Flags().IntVar(&renderScale, "scale", 8, "Integer upscale factor (1 = 28x28)")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "Output file (default <node-id>.png)")
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render <node-id>",
	Short: "Write a node's digit as a PNG",
	Long: `Render the feature vector of a node as a grayscale PNG.

Examples:
  digitgraph render 42
  digitgraph render 42 --scale 2 -o thumb.png`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func runRender(cmd *cobra.Command, args []string) error {
	id := args[0]
	src, closeSrc, err := openPrimedSource(cmd.Context())
	if err != nil {
		return err
	}
	defer closeSrc()

	vec, err := src.Vector(cmd.Context(), id)
	if err != nil {
		return withExitCode(ExitDataError, fmt.Errorf("node %s: %w", id, err))
	}

	out := renderOut
	if out == "" {
		out = id + ".png"
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := imaging.EncodePNG(w, vec, renderScale); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}

	if humanOutput {
		outputHuman("Wrote %s (%dx%d)\n", out, imaging.Side*renderScale, imaging.Side*renderScale)
		return nil
	}
	return outputJSON(map[string]any{"node_id": id, "path": out, "size": imaging.Side * renderScale})
}
