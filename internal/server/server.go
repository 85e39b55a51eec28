// Package server provides the HTTP operator API over the collection registry.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/simstore/internal/config"
	"github.com/hyperjump/simstore/internal/retrieval"
)

// Server is the HTTP server for the simstore API.
type Server struct {
	registry  *retrieval.Registry
	config    *config.ServerConfig
	retrieval config.RetrievalConfig
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server over registry.
func NewServer(registry *retrieval.Registry, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		registry:  registry,
		config:    &cfg.Server,
		retrieval: cfg.Retrieval,
		logger:    logger,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1/collections", func(r chi.Router) {
		r.Get("/", s.handleListCollections)
		r.Route("/{name}", func(r chi.Router) {
			r.Post("/build", s.handleBuild)
			r.Post("/documents", s.handleUpsert)
			r.Delete("/documents", s.handleDeleteText)
			r.Get("/documents/{id}", s.handleGetDocument)
			r.Delete("/documents/{id}", s.handleDeleteDocument)
			r.Post("/search", s.handleSearch)
			r.Get("/stats", s.handleStats)
			r.Get("/categories", s.handleCategories)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
