// Package server provides the HTTP API for Veridoc.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperfocal/veridoc/internal/answer"
	"github.com/hyperfocal/veridoc/internal/config"
)

// Server is the HTTP server for the Veridoc API.
type Server struct {
	orchestrator *answer.Orchestrator
	config       *config.ServerConfig
	maxUpload    int64
	logger       *zap.Logger
	server       *http.Server
}

// NewServer creates a server with the given dependencies. maxUpload bounds
// multipart request bodies in bytes.
func NewServer(orc *answer.Orchestrator, cfg *config.ServerConfig, maxUpload int64, logger *zap.Logger) *Server {
	return &Server{
		orchestrator: orc,
		config:       cfg,
		maxUpload:    maxUpload,
		logger:       logger,
	}
}

// Router builds the chi router with all API routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/chat", s.handleChat)
	r.Post("/api/upload", s.handleUpload)
	r.Get("/api/session/{id}/files", s.handleSessionFiles)
	r.Delete("/api/session/{id}", s.handleDeleteSession)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
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
