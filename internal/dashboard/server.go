// Package dashboard exposes the most recently collected portfolio report
// over HTTP.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"spreadtrack/internal/report"
)

// Server serves the latest report as JSON. Publish replaces the report
// atomically; handlers only ever read the last published value.
type Server struct {
	router *chi.Mux
	server *http.Server
	logger logrus.FieldLogger
	addr   string

	mu     sync.RWMutex
	latest *report.ReportData
}

// Config holds the dashboard settings.
type Config struct {
	Addr string
}

// NewServer creates a dashboard server with no report published yet.
func NewServer(cfg Config, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		router: chi.NewRouter(),
		logger: logger,
		addr:   cfg.Addr,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/api/report", s.handleGetReport)
	s.router.Get("/healthz", s.handleHealth)
}

// Publish replaces the served report.
func (s *Server) Publish(r *report.ReportData) {
	s.mu.Lock()
	s.latest = r
	s.mu.Unlock()
}

// Latest returns the currently published report, or nil before the first
// collection.
func (s *Server) Latest() *report.ReportData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Handler exposes the router, used by tests with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.WithField("addr", s.addr).Info("starting dashboard server")
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleGetReport(w http.ResponseWriter, _ *http.Request) {
	latest := s.Latest()
	if latest == nil {
		http.Error(w, "no report collected yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(latest); err != nil {
		s.logger.WithError(err).Error("failed to encode report")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.WithError(err).Error("failed to encode health response")
	}
}
