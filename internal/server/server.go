// Package server provides the HTTP API over one open annotation store.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/nemuri/internal/catalog"
	"github.com/hyperjump/nemuri/internal/config"
	"github.com/hyperjump/nemuri/internal/score"
)

// Server is the HTTP server for the nemuri API. It serves the single
// annotation document the process owns; the catalog is used for status
// reporting only.
type Server struct {
	store   *score.Store
	catalog *catalog.SQLiteCatalog
	config  *config.ServerConfig
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies. catalog may be
// nil; status then omits catalog counts.
func NewServer(
	store *score.Store,
	cat *catalog.SQLiteCatalog,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		store:   store,
		catalog: cat,
		config:  cfg,
		logger:  logger,
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/api/v1/rater", s.handleRater)
	r.Get("/api/v1/epochs", s.handleEpochs)
	r.Get("/api/v1/epochs/{id}/stage", s.handleGetStage)
	r.Put("/api/v1/epochs/{id}/stage", s.handleSetStage)
	r.Get("/api/v1/stats", s.handleStats)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.String("document", s.store.Path()))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
