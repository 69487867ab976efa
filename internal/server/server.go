// Package server provides the HTTP listener for liveness probes, health checks and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HealthStatus represents the health status of the bot
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Links     int               `json:"links"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthChecker is a function that checks component health
type HealthChecker func() (ok bool, message string)

// Server serves the probe, health and metrics endpoints
type Server struct {
	mu        sync.RWMutex
	server    *http.Server
	mux       *http.ServeMux
	checkers  map[string]HealthChecker
	linkCount func() int
	startTime time.Time
	version   string
	logger    zerolog.Logger
}

// Config holds listener configuration
type Config struct {
	// Addr is the address to listen on (e.g., ":8080")
	Addr string

	// MetricsPath is the path for Prometheus metrics
	MetricsPath string

	// HealthPath is the path for detailed health checks
	HealthPath string

	// ReadyPath is the path for readiness checks
	ReadyPath string

	// LivePath is the path for liveness checks
	LivePath string

	// Version is the application version
	Version string
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		Addr:        ":8080",
		MetricsPath: "/metrics",
		HealthPath:  "/health",
		ReadyPath:   "/ready",
		LivePath:    "/live",
		Version:     "dev",
	}
}

// New creates a new listener. linkCount may be nil.
func New(cfg *Config, linkCount func() int, logger zerolog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		mux:       http.NewServeMux(),
		checkers:  make(map[string]HealthChecker),
		linkCount: linkCount,
		startTime: time.Now(),
		version:   cfg.Version,
		logger:    logger.With().Str("component", "server").Logger(),
	}

	s.mux.HandleFunc("/", s.rootHandler)
	s.mux.Handle(cfg.MetricsPath, promhttp.Handler())
	s.mux.HandleFunc(cfg.HealthPath, s.healthHandler)
	s.mux.HandleFunc(cfg.ReadyPath, s.readyHandler)
	s.mux.HandleFunc(cfg.LivePath, s.liveHandler)

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	return s
}

// RegisterHealthCheck registers a health checker
func (s *Server) RegisterHealthCheck(name string, checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers[name] = checker
}

// Start listens and serves until Stop is called. It returns nil after a
// graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("health server listening")
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// rootHandler answers the hosting platform's plain liveness probe
func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		return
	}
}

// runChecks runs every registered checker and reports per-check results
func (s *Server) runChecks() (map[string]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[string]string, len(s.checkers))
	allHealthy := true
	for name, checker := range s.checkers {
		ok, msg := checker()
		if ok {
			results[name] = "ok"
		} else {
			results[name] = msg
			allHealthy = false
		}
	}
	return results, allHealthy
}

// healthHandler returns detailed health status
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	checks, healthy := s.runChecks()

	status := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Checks:    checks,
	}
	if s.linkCount != nil {
		status.Links = s.linkCount()
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		status.Status = "unhealthy"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Debug().Err(err).Msg("failed to write health status")
	}
}

// readyHandler indicates if the bot is ready to serve commands
func (s *Server) readyHandler(w http.ResponseWriter, _ *http.Request) {
	checks, healthy := s.runChecks()
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		for name, result := range checks {
			if result != "ok" {
				fmt.Fprintf(w, "not ready: %s check failed", name)
				return
			}
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ready")); err != nil {
		return
	}
}

// liveHandler indicates if the process is alive
func (s *Server) liveHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("alive")); err != nil {
		return
	}
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Addr returns the server address
func (s *Server) Addr() string {
	return s.server.Addr
}
