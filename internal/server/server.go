package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanonone/digitgraph/internal/config"
	"github.com/sanonone/digitgraph/pkg/dataset"
	"github.com/sanonone/digitgraph/pkg/distance"
	"github.com/sanonone/digitgraph/pkg/engine"
)

const janitorInterval = time.Minute

// Server holds the HTTP interface, the shared dataset and the viewer sessions.
type Server struct {
	src     dataset.Source
	navOpts engine.Options
	view    config.ViewConfig

	httpServer *http.Server
	handler    http.Handler

	sessions   *SessionManager
	tasks      *TaskManager
	limiters   *limiterSet
	authToken  string
	sessionTTL time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewServer wires the HTTP interface around src. The source is primed once
// in the background by Start; every session shares it.
func NewServer(src dataset.Source, cfg *config.Config) (*Server, error) {
	if src == nil {
		return nil, errors.New("nil data source")
	}
	ttl, err := cfg.SessionTTL()
	if err != nil {
		return nil, err
	}

	s := &Server{
		src:        dataset.Once(src),
		navOpts:    NavigatorOptions(cfg.View),
		view:       cfg.View,
		sessions:   NewSessionManager(),
		tasks:      NewTaskManager(),
		limiters:   newLimiterSet(cfg.Server.RateLimit, cfg.Server.RateBurst),
		authToken:  cfg.Server.AuthToken,
		sessionTTL: ttl,
		stop:       make(chan struct{}),
	}

	mux := http.NewServeMux()
	s.registerHTTPHandlers(mux)

	// Recovery -> Logging -> RateLimit -> Auth -> Mux
	// Recovery must be outer-most to catch everything.
	var handler http.Handler = mux
	handler = s.AuthMiddleware(handler)
	handler = s.RateLimitMiddleware(handler)
	handler = s.LoggingMiddleware(handler)
	handler = s.RecoveryMiddleware(handler)

	rootMux := http.NewServeMux()
	rootMux.HandleFunc("GET /healthz", s.handleHealthz)
	rootMux.Handle("GET /metrics", promhttp.Handler())
	rootMux.Handle("/", handler)
	s.handler = rootMux

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           rootMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// NavigatorOptions maps the view configuration onto engine options.
func NavigatorOptions(v config.ViewConfig) engine.Options {
	opts := engine.DefaultOptions()
	opts.DefaultNodeID = v.DefaultNodeID
	opts.DisplayCap = v.DisplayCap
	opts.Radius = v.Radius
	opts.FetchConcurrency = v.FetchConcurrency
	opts.Metric = distance.Metric(v.Metric)
	return opts
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start primes the dataset in the background and starts the janitor.
// It is safe to call more than once.
func (s *Server) Start() {
	s.startOnce.Do(func() {
		task := s.tasks.NewTask("prime")
		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			s.primeDataset(task)
		}()
		go func() {
			defer s.wg.Done()
			s.janitor()
		}()
	})
}

func (s *Server) primeDataset(task *Task) {
	task.SetStatus(TaskStatusRunning)
	task.SetProgress("Loading node data")

	if err := s.src.Prime(context.Background()); err != nil {
		slog.Error("Failed to load node data", "error", err)
		task.SetError(err)
		return
	}
	task.SetProgress("Node data loaded")
	task.SetStatus(TaskStatusCompleted)
}

// janitor drops idle sessions, finished tasks and stale rate limiters.
func (s *Server) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Server) sweep() {
	if n := s.sessions.Reap(s.sessionTTL); n > 0 {
		slog.Info("Expired idle sessions", "count", n, "remaining", s.sessions.Len())
	}
	retention := s.sessionTTL
	if retention <= 0 {
		retention = time.Hour
	}
	cutoff := time.Now().Add(-retention)
	s.tasks.Prune(cutoff)
	if s.limiters != nil {
		s.limiters.prune(cutoff)
	}
}

// Run starts the HTTP server and blocks until it is shut down.
func (s *Server) Run() error {
	s.Start()

	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server startup failed: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server and the background workers.
// It does NOT close the data source (main.go handles that).
func (s *Server) Shutdown() {
	slog.Info("Starting graceful shutdown of HTTP Server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}
