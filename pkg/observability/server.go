package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Server exposes health, metrics and diagnostics endpoints over HTTP.
type Server struct {
	httpServer *http.Server
	port       int
	statsFunc  func() any
}

// ServerOption configures the observability server.
type ServerOption func(*Server)

// WithStats serves the given snapshot function as JSON on /stats.
func WithStats(fn func() any) ServerOption {
	return func(s *Server) {
		s.statsFunc = fn
	}
}

// NewServer creates an observability server on the given port.
func NewServer(port int, opts ...ServerOption) *Server {
	s := &Server{port: port}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins serving. It blocks until the server stops.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", HealthHandler())
	mux.HandleFunc("/health/live", LivenessHandler())
	mux.HandleFunc("/health/ready", ReadinessHandler())
	mux.Handle("/metrics", MetricsHandler())

	if s.statsFunc != nil {
		mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(s.statsFunc())
		})
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
