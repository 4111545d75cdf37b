// Package sampler bounds a neighbor list to a fixed display budget.
package sampler

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/sampleuv"
)

// DefaultLimit is the number of neighbor thumbnails shown around a node.
const DefaultLimit = 16

// Sample returns at most limit ids from neighbors.
//
// When the list already fits it is returned whole, in input order. Otherwise
// exactly limit positions are drawn uniformly without replacement and the ids
// at those positions are returned in draw order. Positions, not ids, are the
// draw candidates: an id listed twice in the input can be drawn twice.
//
// src may be nil, in which case the global source is used.
func Sample(neighbors []string, limit int, src rand.Source) []string {
	if limit <= 0 || len(neighbors) == 0 {
		return []string{}
	}
	if len(neighbors) <= limit {
		out := make([]string, len(neighbors))
		copy(out, neighbors)
		return out
	}

	idxs := make([]int, limit)
	sampleuv.WithoutReplacement(idxs, len(neighbors), src)

	out := make([]string, limit)
	for i, idx := range idxs {
		out[i] = neighbors[idx]
	}
	return out
}
