// Package server provides the HTTP API for the career assistant.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hyperjump/portfolio-rag/internal/config"
	"github.com/hyperjump/portfolio-rag/internal/models"
	"github.com/hyperjump/portfolio-rag/internal/search"
	"github.com/hyperjump/portfolio-rag/internal/storage"
	"github.com/hyperjump/portfolio-rag/pkg/utils"
)

// AvailableEndpoints is advertised in 404 responses.
var AvailableEndpoints = []string{"/", "/health", "/chat", "/chat/stats"}

// Answerer answers chat requests.
type Answerer interface {
	Answer(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error)
}

// StatsProvider reports retrieval statistics.
type StatsProvider interface {
	Stats() search.Stats
}

// Server is the HTTP server for the chat API.
type Server struct {
	chat    Answerer
	stats   StatsProvider
	catalog storage.Catalog
	config  *config.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	now     func() time.Time
}

// NewServer creates a server with the given dependencies. catalog may be nil.
func NewServer(
	chat Answerer,
	stats StatsProvider,
	catalog storage.Catalog,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		chat:    chat,
		stats:   stats,
		catalog: catalog,
		config:  cfg,
		logger:  utils.OrNop(logger),
		now:     time.Now,
	}
}

// Handler returns the routed HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}
	r.Use(middleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/chat", s.handleChat)
	r.Get("/chat/stats", s.handleChatStats)
	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)
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
	s.logger.Info("Starting server", zap.String("addr", addr), zap.Strings("cors_origins", s.config.CORSOrigins))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
