package dataset

import (
	"context"
	"fmt"
	"sync"

	"github.com/sanonone/digitgraph/pkg/distance"
	"github.com/tidwall/btree"
)

// MemoryStore is a thread-safe, in-memory Source.
//
// Vectors are kept either as float32 or, to halve memory on large datasets,
// as float16 bit patterns that are widened on every lookup. Node ids are also
// kept in a B-tree so they can be listed in order.
type MemoryStore struct {
	mu        sync.RWMutex
	precision distance.Precision
	vectors   map[string][]float32
	halves    map[string][]uint16
	adjacency map[string][]string
	ids       *btree.BTreeG[string]
}

// NewMemoryStore creates an empty store holding vectors at the given precision.
func NewMemoryStore(precision distance.Precision) *MemoryStore {
	if precision == "" {
		precision = distance.Float32
	}
	return &MemoryStore{
		precision: precision,
		vectors:   make(map[string][]float32),
		halves:    make(map[string][]uint16),
		adjacency: make(map[string][]string),
		ids:       btree.NewBTreeG[string](func(a, b string) bool { return a < b }),
	}
}

// Put stores the vector of a node, replacing any previous one.
func (s *MemoryStore) Put(id string, vec []float32) error {
	if id == "" {
		return fmt.Errorf("node id must not be empty")
	}
	if err := CheckVector(id, vec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.precision == distance.Float16 {
		s.halves[id] = distance.ToFloat16(vec)
	} else {
		cp := make([]float32, len(vec))
		copy(cp, vec)
		s.vectors[id] = cp
	}
	s.ids.Set(id)
	return nil
}

// SetNeighbors replaces the adjacency list of a node. Order is kept as given.
func (s *MemoryStore) SetNeighbors(id string, neighbors []string) {
	cp := make([]string, len(neighbors))
	copy(cp, neighbors)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.adjacency[id] = cp
}

// Prime is a no-op: a MemoryStore is ready as soon as it is filled.
func (s *MemoryStore) Prime(ctx context.Context) error {
	return nil
}

// Vector returns a copy of the node's vector.
func (s *MemoryStore) Vector(ctx context.Context, id string) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.precision == distance.Float16 {
		bits, ok := s.halves[id]
		if !ok {
			return nil, ErrNotFound
		}
		return distance.FromFloat16(bits), nil
	}

	vec, ok := s.vectors[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)
	return cp, nil
}

// Neighbors returns a copy of the node's adjacency list.
func (s *MemoryStore) Neighbors(ctx context.Context, id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.adjacency[id]
	cp := make([]string, len(list))
	copy(cp, list)
	return cp, nil
}

// List returns up to limit node ids greater than after, in ascending order.
func (s *MemoryStore) List(ctx context.Context, after string, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, min(limit, s.ids.Len()))
	s.ids.Ascend(after, func(id string) bool {
		if id == after {
			return true
		}
		out = append(out, id)
		return len(out) < limit
	})
	return out, nil
}

// Count returns the number of nodes with a stored vector.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ids.Len(), nil
}

// Each calls fn for every node until fn returns false. Nodes with a vector
// come first in id order, followed by nodes that only have an adjacency list
// (with a nil vector). It is used to export the store to other backends.
func (s *MemoryStore) Each(fn func(id string, vec []float32, neighbors []string) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stopped := false
	s.ids.Scan(func(id string) bool {
		var vec []float32
		if s.precision == distance.Float16 {
			vec = distance.FromFloat16(s.halves[id])
		} else {
			vec = s.vectors[id]
		}
		stopped = !fn(id, vec, s.adjacency[id])
		return !stopped
	})
	if stopped {
		return
	}

	for id, neighbors := range s.adjacency {
		if _, ok := s.ids.Get(id); ok {
			continue
		}
		if !fn(id, nil, neighbors) {
			return
		}
	}
}
