package engine

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/sanonone/digitgraph/pkg/distance"
	"github.com/sanonone/digitgraph/pkg/layout"
	"github.com/sanonone/digitgraph/pkg/sampler"
)

// Options configures a Navigator.
type Options struct {
	// DefaultNodeID is selected by Initialize once the dataset is primed.
	DefaultNodeID string

	// DisplayCap is the maximum number of neighbor thumbnails kept per view.
	DisplayCap int

	// Radius of the thumbnail ring, in percent of the viewport.
	Radius float64

	// FetchConcurrency bounds how many neighbor vectors are fetched at once.
	// 1 fetches them one after the other. Values above DisplayCap are clamped.
	FetchConcurrency int

	// Metric is used to annotate each displayed neighbor with its distance
	// from the focal node.
	Metric distance.Metric

	// Rand drives neighbor sampling. Nil uses the global source.
	Rand rand.Source

	// Logger receives selection events. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the reference configuration.
//
// Defaults:
//   - DefaultNodeID: "0"
//   - DisplayCap: 16
//   - Radius: 42
//   - FetchConcurrency: 1 (sequential)
//   - Metric: squared Euclidean
func DefaultOptions() Options {
	return Options{
		DefaultNodeID:    "0",
		DisplayCap:       sampler.DefaultLimit,
		Radius:           layout.DefaultRadius,
		FetchConcurrency: 1,
		Metric:           distance.Euclidean,
	}
}

func (o *Options) validate() error {
	if o.DisplayCap < 1 {
		return fmt.Errorf("display cap must be at least 1, got %d", o.DisplayCap)
	}
	if o.Radius <= 0 || o.Radius > 50 {
		return fmt.Errorf("radius must be in (0, 50], got %g", o.Radius)
	}
	if o.FetchConcurrency < 1 {
		o.FetchConcurrency = 1
	}
	if o.FetchConcurrency > o.DisplayCap {
		o.FetchConcurrency = o.DisplayCap
	}
	if o.Metric == "" {
		o.Metric = distance.Euclidean
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Rand != nil {
		o.Rand = &lockedSource{src: o.Rand}
	}
	return nil
}

// lockedSource serializes access to a rand.Source shared by overlapping
// selections.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}
