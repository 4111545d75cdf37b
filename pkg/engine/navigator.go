// Package engine drives navigation through a digit similarity graph.
//
// A Navigator owns one view: the focal node, its full neighbor list, the
// sampled subset shown as thumbnails, their ring positions and the vectors
// needed to draw them. Each selection fetches from a dataset.Source, samples,
// lays out and commits a new view.
//
// Basic usage:
//
//	nav, err := engine.New(src, engine.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = nav.Initialize(ctx)
//	_ = nav.Select(ctx, "42")
//	view := nav.Snapshot()
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sanonone/digitgraph/pkg/dataset"
	"github.com/sanonone/digitgraph/pkg/distance"
	"github.com/sanonone/digitgraph/pkg/layout"
	"github.com/sanonone/digitgraph/pkg/metrics"
	"github.com/sanonone/digitgraph/pkg/sampler"
)

var (
	// ErrMissingVector aborts a selection whose focal node has no vector.
	ErrMissingVector = errors.New("missing vector")
	// ErrNotReady is returned by Select before the dataset has been primed.
	ErrNotReady = errors.New("navigator not ready")
	// ErrAlreadyInitialized is returned by a second call to Initialize.
	ErrAlreadyInitialized = errors.New("navigator already initialized")
	// ErrSuperseded is returned by a selection whose results were discarded
	// because a newer selection started while it was running.
	ErrSuperseded = errors.New("selection superseded")
)

// Navigator is the navigation state machine for a single viewer.
//
// Phases go Uninitialized -> Loading -> Ready, then alternate between Ready
// and Loading on every selection. Selections may overlap: each one takes a
// generation number and only the most recently started one is allowed to
// commit. The lock is held only to read or commit state, never across a
// data source call.
type Navigator struct {
	src    dataset.Source
	opts   Options
	distFn distance.Func

	mu         sync.Mutex
	state      ViewState
	phase      Phase
	generation uint64
	primed     bool
}

// New creates a Navigator over src. The source is not touched until
// Initialize.
func New(src dataset.Source, opts Options) (*Navigator, error) {
	if src == nil {
		return nil, errors.New("nil data source")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	distFn, err := distance.GetFunc(opts.Metric)
	if err != nil {
		return nil, err
	}
	return &Navigator{
		src:    src,
		opts:   opts,
		distFn: distFn,
		state: ViewState{
			AllNeighborIDs:       []string{},
			DisplayedNeighborIDs: []string{},
			NeighborVectors:      map[string][]float32{},
			NeighborDistances:    map[string]float64{},
			Positions:            []layout.Position{},
		},
	}, nil
}

// Initialize primes the data source and selects the default node.
//
// If priming fails the failure is logged and the Navigator stays in the
// loading phase for good; the returned error wraps dataset.ErrPrimeFailed and
// may be ignored. A failure to select the default node leaves a ready view
// with no focal node.
func (n *Navigator) Initialize(ctx context.Context) error {
	n.mu.Lock()
	if n.phase != PhaseUninitialized {
		n.mu.Unlock()
		return ErrAlreadyInitialized
	}
	n.phase = PhaseLoading
	n.state.Loading = true
	n.mu.Unlock()

	if err := n.src.Prime(ctx); err != nil {
		if !errors.Is(err, dataset.ErrPrimeFailed) {
			err = fmt.Errorf("%w: %w", dataset.ErrPrimeFailed, err)
		}
		n.opts.Logger.Error("Failed to load node data", "error", err)
		return err
	}

	n.mu.Lock()
	n.primed = true
	n.mu.Unlock()

	if c, ok := n.src.(dataset.Counter); ok {
		if count, err := c.Count(ctx); err == nil {
			metrics.DatasetNodes.Set(float64(count))
		}
	}

	return n.Select(ctx, n.opts.DefaultNodeID)
}

// Select makes id the focal node.
//
// The main vector is fetched first; if it is missing or does not hold
// dataset.VectorLen values the selection is aborted, the previous view is kept and ErrMissingVector is returned.
// Otherwise the neighbor list is fetched and sampled down to DisplayCap, the
// sampled neighbors' vectors are fetched (a neighbor that fails is skipped
// and drawn as a placeholder), positions are computed and the view is
// committed. Selecting the current node again re-samples its neighbors.
func (n *Navigator) Select(ctx context.Context, id string) error {
	n.mu.Lock()
	if !n.primed {
		n.mu.Unlock()
		return ErrNotReady
	}
	n.generation++
	gen := n.generation
	n.phase = PhaseLoading
	n.state.Loading = true
	n.mu.Unlock()

	start := time.Now()
	defer func() {
		metrics.SelectionDuration.Observe(time.Since(start).Seconds())
	}()

	logger := n.opts.Logger.With("node_id", id, "generation", gen)

	main, err := n.src.Vector(ctx, id)
	if err == nil {
		err = dataset.CheckVector(id, main)
	}
	if err != nil {
		switch {
		case errors.Is(err, dataset.ErrNotFound):
			err = fmt.Errorf("%w for node %s", ErrMissingVector, id)
			metrics.SelectionsTotal.WithLabelValues("missing_vector").Inc()
		case errors.Is(err, dataset.ErrBadVector):
			err = fmt.Errorf("%w: %w", ErrMissingVector, err)
			metrics.SelectionsTotal.WithLabelValues("missing_vector").Inc()
		default:
			err = fmt.Errorf("fetching vector of node %s: %w", id, err)
			metrics.SelectionsTotal.WithLabelValues("error").Inc()
		}
		n.abort(gen)
		logger.Error("Error selecting node", "error", err)
		return err
	}

	all, err := n.src.Neighbors(ctx, id)
	if err != nil {
		err = fmt.Errorf("fetching neighbors of node %s: %w", id, err)
		metrics.SelectionsTotal.WithLabelValues("error").Inc()
		n.abort(gen)
		logger.Error("Error selecting node", "error", err)
		return err
	}
	if all == nil {
		all = []string{}
	}

	displayed := sampler.Sample(all, n.opts.DisplayCap, n.opts.Rand)
	vectors := n.fetchNeighbors(ctx, gen, displayed)

	distances := make(map[string]float64, len(vectors))
	for nid, vec := range vectors {
		if d, err := n.distFn(main, vec); err == nil {
			distances[nid] = d
		}
	}

	next := ViewState{
		CurrentNodeID:        id,
		HasCurrent:           true,
		MainVector:           main,
		AllNeighborIDs:       all,
		DisplayedNeighborIDs: displayed,
		NeighborVectors:      vectors,
		NeighborDistances:    distances,
		Positions:            layout.Radial(len(displayed), n.opts.Radius),
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if gen != n.generation {
		metrics.SelectionsTotal.WithLabelValues("superseded").Inc()
		logger.Debug("Discarding superseded selection", "latest_generation", n.generation)
		return ErrSuperseded
	}

	n.state = next
	n.phase = PhaseReady
	metrics.SelectionsTotal.WithLabelValues("ok").Inc()
	logger.Info("Node selected",
		"total_neighbors", len(all),
		"displayed", len(displayed),
		"placeholders", len(uniqueIDs(displayed))-len(vectors),
	)
	return nil
}

// abort ends a failed selection. The view is left as it was before the call;
// only the loading flag is cleared, and only if no newer selection started.
func (n *Navigator) abort(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if gen != n.generation {
		return
	}
	n.state.Loading = false
	n.phase = PhaseReady
}

// isStale reports whether a newer selection than gen has started.
func (n *Navigator) isStale(gen uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return gen != n.generation
}

// fetchNeighbors loads the vectors of the displayed neighbors with at most
// FetchConcurrency requests in flight. Failed fetches are logged and left
// out of the result. Work stops early once the selection is superseded.
func (n *Navigator) fetchNeighbors(ctx context.Context, gen uint64, ids []string) map[string][]float32 {
	var (
		mu      sync.Mutex
		vectors = make(map[string][]float32, len(ids))
		g       errgroup.Group
	)
	g.SetLimit(n.opts.FetchConcurrency)

	for _, id := range uniqueIDs(ids) {
		g.Go(func() error {
			if n.isStale(gen) {
				return nil
			}
			vec, err := n.src.Vector(ctx, id)
			if err == nil {
				err = dataset.CheckVector(id, vec)
			}
			if err != nil {
				metrics.NeighborFetchFailures.Inc()
				n.opts.Logger.Warn("Skipping neighbor without vector",
					"neighbor_id", id, "generation", gen, "error", err)
				return nil
			}
			mu.Lock()
			vectors[id] = vec
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return vectors
}

// Snapshot returns a deep copy of the current view.
func (n *Navigator) Snapshot() Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Snapshot{
		ViewState:  n.state.clone(),
		Phase:      n.phase,
		Generation: n.generation,
	}
}

// Phase returns the current lifecycle phase.
func (n *Navigator) Phase() Phase {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.phase
}

// Options returns the validated options the Navigator runs with.
func (n *Navigator) Options() Options {
	return n.opts
}

// uniqueIDs returns ids without repeats, keeping first occurrences in order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
