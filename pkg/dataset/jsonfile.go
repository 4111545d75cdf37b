package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/sanonone/digitgraph/pkg/distance"
)

// JSONSource loads a dataset from two JSON documents:
//
//	nodes: {"0": [0, 0.1, ...784 values], "1": [...]}
//	graph: {"0": ["17", "42"], "1": []}
//
// Everything is read into a MemoryStore on Prime.
type JSONSource struct {
	*MemoryStore

	nodesPath string
	graphPath string
	primed    bool
}

// NewJSONSource creates a source reading the given files. The graph file is
// optional; without it every node has zero neighbors.
func NewJSONSource(nodesPath, graphPath string, precision distance.Precision) *JSONSource {
	return &JSONSource{
		MemoryStore: NewMemoryStore(precision),
		nodesPath:   nodesPath,
		graphPath:   graphPath,
	}
}

// Prime reads and validates both files.
func (s *JSONSource) Prime(ctx context.Context) error {
	var nodes map[string][]float32
	if err := readJSON(s.nodesPath, &nodes); err != nil {
		return fmt.Errorf("%w: nodes: %w", ErrPrimeFailed, err)
	}
	for id, vec := range nodes {
		if err := s.Put(id, vec); err != nil {
			return fmt.Errorf("%w: %w", ErrPrimeFailed, err)
		}
	}

	edges := 0
	if s.graphPath != "" {
		var graph map[string][]string
		if err := readJSON(s.graphPath, &graph); err != nil {
			return fmt.Errorf("%w: graph: %w", ErrPrimeFailed, err)
		}
		for id, neighbors := range graph {
			s.SetNeighbors(id, neighbors)
			edges += len(neighbors)
		}
	}

	s.mu.Lock()
	s.primed = true
	s.mu.Unlock()

	slog.Info("Dataset loaded", "source", "json", "nodes", len(nodes), "edges", edges)
	return nil
}

// Vector returns ErrNotPrimed until Prime has succeeded.
func (s *JSONSource) Vector(ctx context.Context, id string) ([]float32, error) {
	if !s.isPrimed() {
		return nil, ErrNotPrimed
	}
	return s.MemoryStore.Vector(ctx, id)
}

// Neighbors returns ErrNotPrimed until Prime has succeeded.
func (s *JSONSource) Neighbors(ctx context.Context, id string) ([]string, error) {
	if !s.isPrimed() {
		return nil, ErrNotPrimed
	}
	return s.MemoryStore.Neighbors(ctx, id)
}

func (s *JSONSource) isPrimed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primed
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
