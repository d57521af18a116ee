// Package server provides the HTTP API for TrueWork.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/truework/truework/internal/config"
	"github.com/truework/truework/internal/engine"
	"github.com/truework/truework/internal/extract"
	"github.com/truework/truework/internal/index"
	"github.com/truework/truework/internal/intake"
	"github.com/truework/truework/internal/storage"
)

// Server is the HTTP server for the TrueWork API.
type Server struct {
	engine    *engine.Engine
	storage   storage.Storage
	index     *index.SubmissionIndex
	extractor *extract.Extractor
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server

	// intake is nil when no drop directories are configured; configPath is
	// where directory changes are persisted. configMu guards config writes.
	intake     *intake.Watcher
	configPath string
	configMu   sync.Mutex

	// batchMu serializes analyze and clear so no run ever observes a
	// half-cleared batch.
	batchMu sync.Mutex
}

// NewServer creates a server with the given dependencies. watcher may be nil
// when intake is disabled; configPath may be empty when directory changes
// should not be persisted.
func NewServer(
	eng *engine.Engine,
	store storage.Storage,
	idx *index.SubmissionIndex,
	watcher *intake.Watcher,
	cfg *config.Config,
	configPath string,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:     eng,
		storage:    store,
		index:      idx,
		extractor:  extract.NewExtractor(),
		config:     cfg,
		logger:     logger,
		intake:     watcher,
		configPath: configPath,
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Post("/api/v1/submissions", s.handleUploadSubmissions)
	r.Get("/api/v1/submissions", s.handleListSubmissions)
	r.Post("/api/v1/analyze", s.handleAnalyze)
	r.Get("/api/v1/results", s.handleResults)
	r.Get("/api/v1/graph", s.handleGraph)
	r.Get("/api/v1/summary", s.handleSummary)
	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/clear", s.handleClear)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/intake/directories", s.handleIntakeDirectoriesList)
	r.Post("/api/v1/intake/directories", s.handleIntakeDirectoriesAdd)
	r.Delete("/api/v1/intake/directories", s.handleIntakeDirectoriesRemove)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router(),
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
