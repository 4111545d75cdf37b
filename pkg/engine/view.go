package engine

import (
	"image"
	"maps"
	"slices"

	"github.com/sanonone/digitgraph/pkg/imaging"
	"github.com/sanonone/digitgraph/pkg/layout"
)

// Phase is the lifecycle stage of a Navigator.
type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	}
	return "unknown"
}

// ViewState is everything needed to draw one focal node and its neighbors.
//
// DisplayedNeighborIDs is a subset of AllNeighborIDs of size
// min(len(AllNeighborIDs), DisplayCap). NeighborVectors holds an entry for
// each displayed neighbor whose vector could be fetched; the others are drawn
// as placeholders. Positions[i] is where DisplayedNeighborIDs[i] goes.
type ViewState struct {
	CurrentNodeID        string
	HasCurrent           bool
	MainVector           []float32
	AllNeighborIDs       []string
	DisplayedNeighborIDs []string
	NeighborVectors      map[string][]float32
	NeighborDistances    map[string]float64
	Positions            []layout.Position
	Loading              bool
}

// Snapshot is a point-in-time copy of a Navigator's state. It shares no
// memory with the Navigator.
type Snapshot struct {
	ViewState
	Phase      Phase
	Generation uint64
}

func (v ViewState) clone() ViewState {
	out := v
	out.MainVector = slices.Clone(v.MainVector)
	out.AllNeighborIDs = slices.Clone(v.AllNeighborIDs)
	out.DisplayedNeighborIDs = slices.Clone(v.DisplayedNeighborIDs)
	out.Positions = slices.Clone(v.Positions)
	out.NeighborDistances = maps.Clone(v.NeighborDistances)
	if v.NeighborVectors != nil {
		out.NeighborVectors = make(map[string][]float32, len(v.NeighborVectors))
		for id, vec := range v.NeighborVectors {
			out.NeighborVectors[id] = slices.Clone(vec)
		}
	}
	return out
}

// MainImage renders the focal node. It returns false when no node is focused.
func (s Snapshot) MainImage() (*image.RGBA, bool) {
	if !s.HasCurrent {
		return nil, false
	}
	return imaging.Decode(s.MainVector), true
}

// NeighborImage renders a displayed neighbor from the view's cache. It
// returns false for neighbors whose vector is missing, which the caller
// should draw as a placeholder.
func (s Snapshot) NeighborImage(id string) (*image.RGBA, bool) {
	vec, ok := s.NeighborVectors[id]
	if !ok {
		return nil, false
	}
	return imaging.Decode(vec), true
}

// Image renders id if it is the focal node or a cached neighbor.
func (s Snapshot) Image(id string) (*image.RGBA, bool) {
	if s.HasCurrent && id == s.CurrentNodeID {
		return s.MainImage()
	}
	return s.NeighborImage(id)
}
