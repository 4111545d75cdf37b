package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/sanonone/digitgraph/pkg/client"
)

var (
	walkServer string
	walkToken  string
	walkStart  string
	walkSteps  int
	walkSeed   uint64
)

func init() {
	walkCmd.Flags().StringVar(&walkServer, "server", "http://localhost:9091", "Base URL of a running digitgraph server")
	walkCmd.Flags().StringVar(&walkToken, "token", "", "API token (defaults to server.auth_token)")
	walkCmd.Flags().StringVar(&walkStart, "start", "", "Node to start from (default: the server's default node)")
	walkCmd.Flags().IntVar(&walkSteps, "steps", 10, "Number of hops")
	walkCmd.Flags().Uint64Var(&walkSeed, "seed", 0, "Seed for choosing hops (0 = random)")
	rootCmd.AddCommand(walkCmd)
}

var walkCmd = &cobra.Command{
	Use:   "walk",
	Short: "Random-walk the graph through a running server",
	Long: `Open a session on a running server and repeatedly select a random
displayed neighbor, printing the path taken. Placeholders (neighbors without
a vector) are never chosen.

Examples:
  digitgraph walk --steps 20
  digitgraph walk --server http://viewer:9091 --start 7 --seed 1 --human`,
	RunE: runWalk,
}

type walkStep struct {
	NodeID         string   `json:"node_id"`
	TotalNeighbors int      `json:"total_neighbors"`
	Displayed      int      `json:"displayed"`
	Distance       *float64 `json:"distance,omitempty"`
}

func runWalk(cmd *cobra.Command, args []string) error {
	token := walkToken
	if token == "" {
		token = cfg.Server.AuthToken
	}
	c := client.NewFromURL(walkServer, token)

	sess, err := c.OpenSession()
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	defer sess.Close()

	if err := sess.Init.Wait(100*time.Millisecond, 2*time.Minute); err != nil {
		return withExitCode(ExitDataError, err)
	}

	view, err := sess.View()
	if walkStart != "" {
		view, err = sess.Select(walkStart)
	}
	if err != nil {
		return withExitCode(ExitDataError, err)
	}

	rng := rand.New(rand.NewPCG(walkSeed, walkSeed))
	if walkSeed == 0 {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	path := []walkStep{{NodeID: view.NodeID, TotalNeighbors: view.TotalNeighbors, Displayed: view.DisplayedCount}}
	for i := 0; i < walkSteps; i++ {
		var candidates []client.Neighbor
		for _, n := range view.Neighbors {
			if n.HasVector {
				candidates = append(candidates, n)
			}
		}
		if len(candidates) == 0 {
			break
		}
		next := candidates[rng.IntN(len(candidates))]

		view, err = sess.Select(next.ID)
		if err != nil {
			return fmt.Errorf("selecting %s: %w", next.ID, err)
		}
		path = append(path, walkStep{
			NodeID:         view.NodeID,
			TotalNeighbors: view.TotalNeighbors,
			Displayed:      view.DisplayedCount,
			Distance:       next.Distance,
		})
	}

	if !humanOutput {
		return outputJSON(path)
	}
	for i, step := range path {
		dist := ""
		if step.Distance != nil {
			dist = " (distance " + formatFloat(*step.Distance) + ")"
		}
		outputHuman("%3d  node %-10s %d neighbors%s\n", i, step.NodeID, step.TotalNeighbors, dist)
	}
	return nil
}
