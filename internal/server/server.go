// Package server exposes the batch manager over a REST API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"batchplane/internal/batch"
	"batchplane/internal/tasks"
)

// Config tunes the HTTP server.
type Config struct {
	Addr           string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server is the HTTP front end for a batch manager.
type Server struct {
	manager  *batch.Manager
	registry *tasks.Registry
	log      *slog.Logger

	httpServer *http.Server
}

// New builds the server and its router. metricsHandler, when non-nil, is
// mounted at /metrics.
func New(cfg Config, manager *batch.Manager, registry *tasks.Registry, log *slog.Logger, metricsHandler http.Handler) *Server {
	s := &Server{
		manager:  manager,
		registry: registry,
		log:      log,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(log))
	r.Use(recovery(log))
	r.Use(rateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	r.Get("/healthz", s.handleHealth)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/jobs", s.handleSubmit)
		r.Get("/jobs/{jobID}", s.handleJobStatus)
		r.Delete("/jobs/{jobID}", s.handleCancel)

		r.Get("/stats", s.handleSchedulerStats)
		r.Get("/resources", s.handleResourceStats)
		r.Get("/roi", s.handleROI)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/tasks", s.handleTasks)
	})

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
