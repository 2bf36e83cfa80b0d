package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/coursefinder-crawler/internal/aggregator"
	"github.com/JakeFAU/coursefinder-crawler/internal/metrics"
)

const (
	readHeaderTimeout = 5 * time.Second
	handlerTimeout    = 10 * time.Second
)

// StatusSource reports live aggregation counts.
type StatusSource interface {
	Snapshot() aggregator.Snapshot
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type trackedRun struct {
	runID     string
	startedAt time.Time
	source    StatusSource
}

// ProgressResponse is the body of GET /progress.
type ProgressResponse struct {
	RunID          string              `json:"run_id"`
	StartedAt      time.Time           `json:"started_at"`
	ElapsedSeconds float64             `json:"elapsed_seconds"`
	Percent        float64             `json:"percent"`
	Counts         aggregator.Snapshot `json:"counts"`
}

// Server exposes crawl health and progress over HTTP.
type Server struct {
	router http.Handler
	clock  Clock
	logger *zap.Logger
	run    atomic.Pointer[trackedRun]

	httpServer *http.Server
}

// NewServer constructs a Server with middleware and routes.
func NewServer(clock Clock, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{clock: clock, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(handlerTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/progress", s.progress)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server or httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Track points /progress at source for the crawl identified by runID.
func (s *Server) Track(runID string, source StatusSource) {
	s.run.Store(&trackedRun{runID: runID, startedAt: s.clock.Now(), source: source})
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when addr uses port 0.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen %s: %w", addr, err)
	}
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("monitoring server stopped", zap.Error(err))
		}
	}()
	s.logger.Info("monitoring server listening", zap.String("addr", ln.Addr().String()))
	return ln.Addr().String(), nil
}

// Shutdown gracefully stops a started server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown monitoring server: %w", err)
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.run.Load() == nil {
		writeError(s.logger, w, http.StatusServiceUnavailable, "no crawl in progress")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) progress(w http.ResponseWriter, _ *http.Request) {
	run := s.run.Load()
	if run == nil {
		writeError(s.logger, w, http.StatusNotFound, "no crawl in progress")
		return
	}
	snap := run.source.Snapshot()
	writeJSON(s.logger, w, http.StatusOK, ProgressResponse{
		RunID:          run.runID,
		StartedAt:      run.startedAt,
		ElapsedSeconds: s.clock.Now().Sub(run.startedAt).Seconds(),
		Percent:        snap.Fraction() * 100,
		Counts:         snap,
	})
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"error": msg})
}
