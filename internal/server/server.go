// Package server provides the HTTP API for innrelay.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Evgen-rus/Tg-mtproto/internal/config"
	"github.com/Evgen-rus/Tg-mtproto/internal/keyword"
	"github.com/Evgen-rus/Tg-mtproto/internal/normalize"
	"github.com/Evgen-rus/Tg-mtproto/internal/relay"
	"github.com/Evgen-rus/Tg-mtproto/internal/storage"
)

// Server is the HTTP server for the innrelay API.
type Server struct {
	session    *relay.Session
	storage    storage.Storage
	index      keyword.ResultIndex
	normalizer *normalize.Normalizer
	config     *config.Config
	logger     *zap.Logger
	server     *http.Server
	now        func() time.Time
}

// NewServer creates a server with the given dependencies. index may be nil, in which
// case search responds 501.
func NewServer(
	session *relay.Session,
	store storage.Storage,
	index keyword.ResultIndex,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		session:    session,
		storage:    store,
		index:      index,
		normalizer: normalize.NewNormalizer(),
		config:     cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5, "application/json"))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/commands", s.handleSendCommand)
		r.Post("/events", s.handleEvent)
		r.Post("/parse", s.handleParse)
		r.Get("/results", s.handleListResults)
		r.Get("/results/{inn}", s.handleGetResult)
		r.Get("/queries/{id}/results", s.handleQueryResults)
		r.Get("/search", s.handleSearch)
		r.Get("/export", s.handleExport)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
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
