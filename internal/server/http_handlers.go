package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sanonone/digitgraph/internal/server/ui"
	"github.com/sanonone/digitgraph/pkg/dataset"
	"github.com/sanonone/digitgraph/pkg/engine"
	"github.com/sanonone/digitgraph/pkg/imaging"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// registerHTTPHandlers sets up the REST routes and the viewer UI.
func (s *Server) registerHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetView)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/select", s.handleSelect)
	mux.HandleFunc("GET /api/sessions/{id}/images/{node}", s.handleSessionImage)

	mux.HandleFunc("GET /api/nodes", s.handleListNodes)
	mux.HandleFunc("GET /api/nodes/{id}/image", s.handleNodeImage)
	mux.HandleFunc("GET /api/nodes/{id}/neighbors", s.handleNodeNeighbors)

	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)

	mux.Handle("GET /", ui.GetHandler())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeHTTPResponse(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

// --- Sessions ---

// handleCreateSession opens a session and initializes its Navigator in the
// background. The client follows progress through the returned task or by
// polling the view.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(func(id string) (*engine.Navigator, error) {
		opts := s.navOpts
		opts.Logger = slog.Default().With("session_id", id)
		return engine.New(s.src, opts)
	})
	if err != nil {
		s.writeHTTPError(w, http.StatusInternalServerError, err.Error())
		return
	}

	task := s.tasks.NewTask("initialize")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.initializeSession(sess, task)
	}()

	s.writeHTTPResponse(w, http.StatusAccepted, SessionCreatedResponse{
		SessionID: sess.ID,
		TaskID:    task.ID,
	})
}

func (s *Server) initializeSession(sess *Session, task *Task) {
	task.SetStatus(TaskStatusRunning)
	task.SetProgress("Loading node data")

	err := sess.Nav.Initialize(context.Background())
	switch {
	case err == nil:
		task.SetProgress("Default node selected")
		task.SetStatus(TaskStatusCompleted)
	case errors.Is(err, dataset.ErrPrimeFailed):
		task.SetError(err)
	default:
		// Data is loaded; the viewer is usable even without a focal node.
		task.SetProgress("Default node unavailable: " + err.Error())
		task.SetStatus(TaskStatusCompleted)
	}
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	s.writeView(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(r.PathValue("id")) {
		s.writeHTTPError(w, http.StatusNotFound, ErrSessionNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSelect runs a selection to completion and returns the resulting view.
// A client disconnect does not cancel the selection.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.NodeID == "" {
		s.writeHTTPError(w, http.StatusBadRequest, "node_id is required")
		return
	}

	err := sess.Nav.Select(context.WithoutCancel(r.Context()), req.NodeID)
	switch {
	case err == nil:
		s.writeView(w, http.StatusOK, sess)
	case errors.Is(err, engine.ErrMissingVector):
		s.writeHTTPError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrNotReady), errors.Is(err, engine.ErrSuperseded):
		s.writeHTTPError(w, http.StatusConflict, err.Error())
	default:
		s.writeHTTPError(w, http.StatusBadGateway, err.Error())
	}
}

// handleSessionImage serves the focal node or a displayed neighbor from the
// session's committed view, without touching the data source.
func (s *Server) handleSessionImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	scale, ok := s.parseScale(w, r, s.view.ThumbScale)
	if !ok {
		return
	}

	img, found := sess.Nav.Snapshot().Image(r.PathValue("node"))
	if !found {
		s.writeHTTPError(w, http.StatusNotFound, "Image not in current view")
		return
	}
	scaled, err := imaging.Scale(img, scale)
	if err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if err := imaging.WritePNG(w, scaled); err != nil {
		slog.Error("Writing session image", "error", err)
	}
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeHTTPError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return sess, true
}

func (s *Server) writeView(w http.ResponseWriter, status int, sess *Session) {
	view := newViewResponse(sess.ID, sess.Nav.Snapshot(), s.view.MainScale, s.view.ThumbScale)
	s.writeHTTPResponse(w, status, view)
}

// --- Nodes ---

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := defaultPageSize
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeHTTPError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxPageSize)
	}

	lister, ok := s.src.(dataset.Lister)
	if !ok {
		s.writeHTTPError(w, http.StatusNotImplemented, "Dataset cannot list nodes")
		return
	}
	ids, err := lister.List(r.Context(), q.Get("after"), limit)
	if err != nil {
		s.writeDatasetError(w, err)
		return
	}

	resp := NodeListResponse{Nodes: ids}
	if len(ids) == limit {
		resp.Next = ids[len(ids)-1]
	}
	s.writeHTTPResponse(w, http.StatusOK, resp)
}

func (s *Server) handleNodeImage(w http.ResponseWriter, r *http.Request) {
	scale, ok := s.parseScale(w, r, s.view.MainScale)
	if !ok {
		return
	}
	vec, err := s.src.Vector(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDatasetError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if err := imaging.EncodePNG(w, vec, scale); err != nil {
		slog.Error("Writing node image", "error", err)
	}
}

func (s *Server) handleNodeNeighbors(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ids, err := s.src.Neighbors(r.Context(), id)
	if err != nil {
		s.writeDatasetError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeHTTPResponse(w, http.StatusOK, NeighborsResponse{NodeID: id, Neighbors: ids})
}

// --- Tasks ---

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, found := s.tasks.GetTask(r.PathValue("id"))
	if !found {
		s.writeHTTPError(w, http.StatusNotFound, "Task not found")
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, task.Info())
}

// --- Helpers ---

func (s *Server) parseScale(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	v := r.URL.Query().Get("scale")
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > imaging.MaxScale {
		s.writeHTTPError(w, http.StatusBadRequest, "scale must be an integer between 1 and "+strconv.Itoa(imaging.MaxScale))
		return 0, false
	}
	return n, true
}

func (s *Server) writeDatasetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dataset.ErrNotFound):
		s.writeHTTPError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, dataset.ErrNotPrimed), errors.Is(err, dataset.ErrPrimeFailed):
		s.writeHTTPError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, errors.ErrUnsupported):
		s.writeHTTPError(w, http.StatusNotImplemented, err.Error())
	default:
		s.writeHTTPError(w, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) writeHTTPResponse(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeHTTPError(w http.ResponseWriter, statusCode int, message string) {
	s.writeHTTPResponse(w, statusCode, map[string]string{"error": message})
}
