package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resonance/internal/api/health"
	"resonance/internal/api/scripts"
	"resonance/internal/metrics"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

const (
	defaultPort = 8080

	readTimeout = 10 * time.Second
	// Generation requests can run the whole synthesis pipeline, so the
	// write timeout stays well above the pipeline deadline.
	writeTimeout = 120 * time.Second
	idleTimeout  = 60 * time.Second
)

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	Port        int
	ServiceName string
	Version     string
}

// Server wraps http.Server with lifecycle management.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer wires all routes and builds the server. Scripts and workers
// handlers are optional; their routes are skipped when nil.
func NewServer(cfg ServerConfig, healthHandler *health.Handler, scriptsHandler *scripts.Handler, workersHandler *health.WorkersHandler, log *logger.Logger) *Server {
	mux := http.NewServeMux()

	// Kubernetes probes
	mux.HandleFunc("/health", healthHandler.HandleHealth)
	mux.HandleFunc("/ready", healthHandler.HandleReadiness)
	mux.HandleFunc("/live", healthHandler.HandleLiveness)

	mux.Handle("/metrics", metrics.Handler())

	if scriptsHandler != nil {
		mux.HandleFunc("/v1/scripts/generate", scriptsHandler.HandleGenerate)
		log.Info("✓ Script generation registered at /v1/scripts/generate")
	}

	// Worker status for ops tooling
	if workersHandler != nil {
		mux.HandleFunc("/v1/workers", workersHandler.HandleWorkers)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"service":"%s","version":"%s","status":"running"}`,
			cfg.ServiceName, cfg.Version)
	})

	port := cfg.Port
	if port <= 0 {
		port = defaultPort
	}
	log.Infof("HTTP server configured on port %d", port)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
		log: log,
	}
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Shutdown drains active connections within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("✓ HTTP server stopped")
	return nil
}
