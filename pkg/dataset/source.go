// Package dataset resolves digit nodes to their feature vectors and neighbor
// lists.
//
// The navigation engine only sees the Source interface. Concrete sources load
// the graph from JSON files, a SQLite database or a Neo4j instance; all of
// them must be primed once before the first lookup.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sanonone/digitgraph/pkg/metrics"
)

// VectorLen is the length of every node's feature vector (28x28 pixels).
const VectorLen = 784

var (
	// ErrNotFound is returned by Vector when a node has no stored vector.
	ErrNotFound = errors.New("node not found")
	// ErrPrimeFailed wraps any failure of the one-time load hook.
	ErrPrimeFailed = errors.New("dataset prime failed")
	// ErrNotPrimed is returned by lookups on a source that was never primed.
	ErrNotPrimed = errors.New("dataset not primed")
	// ErrBadVector is returned when a stored vector does not hold VectorLen
	// values.
	ErrBadVector = errors.New("malformed vector")
)

// CheckVector returns an error wrapping ErrBadVector unless vec holds exactly
// VectorLen values.
func CheckVector(id string, vec []float32) error {
	if len(vec) != VectorLen {
		return fmt.Errorf("%w: node %s has %d values, want %d", ErrBadVector, id, len(vec), VectorLen)
	}
	return nil
}

// Source is the graph data collaborator used by the navigation engine.
type Source interface {
	// Prime performs the one-time load. It must succeed before lookups.
	Prime(ctx context.Context) error
	// Vector returns the feature vector of id, or ErrNotFound.
	Vector(ctx context.Context, id string) ([]float32, error)
	// Neighbors returns the neighbor ids of id. An unknown id has no
	// neighbors and is not an error.
	Neighbors(ctx context.Context, id string) ([]string, error)
}

// Lister is implemented by sources that can enumerate node ids in order.
type Lister interface {
	// List returns up to limit ids strictly greater than after.
	List(ctx context.Context, after string, limit int) ([]string, error)
}

// Counter is implemented by sources that know how many nodes they hold.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// onceSource runs the wrapped source's Prime exactly once.
type onceSource struct {
	Source
	once sync.Once
	err  error
}

// Once wraps src so that Prime is executed at most once. Every caller,
// including concurrent ones, observes the result of that single attempt, and
// a failure is counted in metrics.PrimeFailures once.
func Once(src Source) Source {
	if o, ok := src.(*onceSource); ok {
		return o
	}
	return &onceSource{Source: src}
}

func (o *onceSource) Prime(ctx context.Context) error {
	o.once.Do(func() {
		if err := o.Source.Prime(ctx); err != nil {
			metrics.PrimeFailures.Inc()
			if errors.Is(err, ErrPrimeFailed) {
				o.err = err
			} else {
				o.err = fmt.Errorf("%w: %w", ErrPrimeFailed, err)
			}
		}
	})
	return o.err
}

// List forwards to the wrapped source when it implements Lister.
func (o *onceSource) List(ctx context.Context, after string, limit int) ([]string, error) {
	l, ok := o.Source.(Lister)
	if !ok {
		return nil, errors.ErrUnsupported
	}
	return l.List(ctx, after, limit)
}

// Count forwards to the wrapped source when it implements Counter.
func (o *onceSource) Count(ctx context.Context) (int, error) {
	c, ok := o.Source.(Counter)
	if !ok {
		return 0, errors.ErrUnsupported
	}
	return c.Count(ctx)
}

// Unwrap returns the wrapped source.
func (o *onceSource) Unwrap() Source {
	return o.Source
}
