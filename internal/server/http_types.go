package server

import (
	"fmt"
	"net/url"

	"github.com/sanonone/digitgraph/pkg/engine"
)

// SelectRequest defines the body for a node selection.
type SelectRequest struct {
	NodeID string `json:"node_id"`
}

// SessionCreatedResponse is returned when a viewer session is opened.
// TaskID tracks the background initialization.
type SessionCreatedResponse struct {
	SessionID string `json:"session_id"`
	TaskID    string `json:"task_id"`
}

// NeighborView is one thumbnail around the focal node.
type NeighborView struct {
	ID        string   `json:"id"`
	Top       float64  `json:"top"`
	Left      float64  `json:"left"`
	HasVector bool     `json:"has_vector"`
	Distance  *float64 `json:"distance,omitempty"`
	ImageURL  string   `json:"image_url,omitempty"`
}

// ViewResponse is the JSON rendering of a navigator snapshot.
type ViewResponse struct {
	SessionID      string         `json:"session_id"`
	Phase          string         `json:"phase"`
	Loading        bool           `json:"loading"`
	Generation     uint64         `json:"generation"`
	NodeID         string         `json:"node_id,omitempty"`
	HasNode        bool           `json:"has_node"`
	MainImageURL   string         `json:"main_image_url,omitempty"`
	TotalNeighbors int            `json:"total_neighbors"`
	DisplayedCount int            `json:"displayed_count"`
	Neighbors      []NeighborView `json:"neighbors"`
}

// NodeListResponse is a page of node ids. Next is empty on the last page.
type NodeListResponse struct {
	Nodes []string `json:"nodes"`
	Next  string   `json:"next,omitempty"`
}

// NeighborsResponse is the full adjacency list of a node.
type NeighborsResponse struct {
	NodeID    string   `json:"node_id"`
	Neighbors []string `json:"neighbors"`
}

// newViewResponse converts a snapshot into its wire form. Image URLs point at
// the session's own cache and carry the generation to defeat stale caching.
func newViewResponse(sessionID string, s engine.Snapshot, mainScale, thumbScale int) ViewResponse {
	resp := ViewResponse{
		SessionID:      sessionID,
		Phase:          s.Phase.String(),
		Loading:        s.Loading,
		Generation:     s.Generation,
		NodeID:         s.CurrentNodeID,
		HasNode:        s.HasCurrent,
		TotalNeighbors: len(s.AllNeighborIDs),
		DisplayedCount: len(s.DisplayedNeighborIDs),
		Neighbors:      make([]NeighborView, 0, len(s.DisplayedNeighborIDs)),
	}
	if s.HasCurrent {
		resp.MainImageURL = sessionImageURL(sessionID, s.CurrentNodeID, mainScale, s.Generation)
	}

	for i, id := range s.DisplayedNeighborIDs {
		nv := NeighborView{ID: id}
		if i < len(s.Positions) {
			nv.Top = s.Positions[i].Top
			nv.Left = s.Positions[i].Left
		}
		if _, ok := s.NeighborVectors[id]; ok {
			nv.HasVector = true
			nv.ImageURL = sessionImageURL(sessionID, id, thumbScale, s.Generation)
		}
		if d, ok := s.NeighborDistances[id]; ok {
			nv.Distance = &d
		}
		resp.Neighbors = append(resp.Neighbors, nv)
	}
	return resp
}

func sessionImageURL(sessionID, nodeID string, scale int, gen uint64) string {
	return fmt.Sprintf("/api/sessions/%s/images/%s?scale=%d&g=%d",
		url.PathEscape(sessionID), url.PathEscape(nodeID), scale, gen)
}
