package main

import (
	"errors"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/sanonone/digitgraph/internal/server"
	"github.com/sanonone/digitgraph/pkg/engine"
	"github.com/sanonone/digitgraph/pkg/layout"
)

var inspectSeed uint64

func init() {
	inspectCmd.Flags().Uint64Var(&inspectSeed, "seed", 0, "Seed for neighbor sampling (0 = random)")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <node-id>",
	Short: "Print the view the viewer would show for a node",
	Long: `Select a node against the configured dataset and print the resulting
view: neighbor counts, the sampled thumbnails with their ring positions and
their distance from the node.

Examples:
  digitgraph inspect 0
  digitgraph inspect 0 --seed 7 --human`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

type inspectNeighbor struct {
	ID        string          `json:"id"`
	Position  layout.Position `json:"position"`
	HasVector bool            `json:"has_vector"`
	Distance  *float64        `json:"distance,omitempty"`
}

type inspectResult struct {
	NodeID         string            `json:"node_id"`
	TotalNeighbors int               `json:"total_neighbors"`
	Displayed      []inspectNeighbor `json:"displayed"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	id := args[0]
	src, closeSrc, err := openPrimedSource(cmd.Context())
	if err != nil {
		return err
	}
	defer closeSrc()

	opts := server.NavigatorOptions(cfg.View)
	opts.DefaultNodeID = id
	if inspectSeed != 0 {
		opts.Rand = rand.NewPCG(inspectSeed, inspectSeed)
	}
	nav, err := engine.New(src, opts)
	if err != nil {
		return err
	}
	if err := nav.Initialize(cmd.Context()); err != nil {
		if errors.Is(err, engine.ErrMissingVector) {
			return withExitCode(ExitDataError, err)
		}
		return err
	}

	snap := nav.Snapshot()
	res := inspectResult{
		NodeID:         snap.CurrentNodeID,
		TotalNeighbors: len(snap.AllNeighborIDs),
		Displayed:      make([]inspectNeighbor, 0, len(snap.DisplayedNeighborIDs)),
	}
	for i, nid := range snap.DisplayedNeighborIDs {
		n := inspectNeighbor{ID: nid, Position: snap.Positions[i]}
		if _, ok := snap.NeighborVectors[nid]; ok {
			n.HasVector = true
		}
		if d, ok := snap.NeighborDistances[nid]; ok {
			n.Distance = &d
		}
		res.Displayed = append(res.Displayed, n)
	}

	if !humanOutput {
		return outputJSON(res)
	}

	outputHuman("Current node: %s | Total neighbors: %d | Displayed: %d\n\n",
		res.NodeID, res.TotalNeighbors, len(res.Displayed))
	for _, n := range res.Displayed {
		dist := "placeholder"
		if n.Distance != nil {
			dist = formatFloat(*n.Distance)
		}
		outputHuman("  %-10s top=%6.2f%% left=%6.2f%%  %s\n", n.ID, n.Position.Top, n.Position.Left, dist)
	}
	return nil
}
