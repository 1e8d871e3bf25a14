// Package server exposes a read-only HTTP API over the pipeline metadata:
// health, runs, quality results, lineage and the access audit trail.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/dakota-labs/glpipe/internal/audit"
	"github.com/dakota-labs/glpipe/pkg/core"
)

// Server is the metadata API server. Every metadata read served by the API
// is recorded through the auditor; a nil auditor disables recording.
type Server struct {
	store   core.Store
	auditor *audit.Recorder
	addr    string
	logger  *slog.Logger
}

// Config holds configuration for the metadata server.
type Config struct {
	Store   core.Store
	Auditor *audit.Recorder
	Addr    string
	Logger  *slog.Logger
}

// New creates a metadata API server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		store:   cfg.Store,
		auditor: cfg.Auditor,
		addr:    cfg.Addr,
		logger:  logger,
	}
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting metadata server", "addr", s.addr)

	eg, egctx := errgroup.WithContext(ctx)

	r := chi.NewMux()
	r.Use(
		middleware.Recoverer,
		middleware.Compress(5),
	)
	s.setupRoutes(r)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: r,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down metadata server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) setupRoutes(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", s.handleRuns)
		r.Get("/runs/{id}/quality", s.handleRunQuality)
		r.Get("/lineage", s.handleLineage)
		r.Get("/audit", s.handleAudit)
	})
}
