package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/portfolio-rag/internal/models"
	"github.com/hyperjump/portfolio-rag/internal/search"
	"github.com/hyperjump/portfolio-rag/internal/storage"
	"github.com/hyperjump/portfolio-rag/pkg/utils"
)

const maxBodyBytes = 64 << 10

// Client-facing error details. Causes are logged, never returned.
const (
	detailGenerate = "Failed to generate response. Please try again."
	detailStats    = "Failed to retrieve statistics"
)

type errorResponse struct {
	Error              string   `json:"error"`
	Detail             string   `json:"detail"`
	AvailableEndpoints []string `json:"available_endpoints,omitempty"`
}

type healthResponse struct {
	Status      string            `json:"status"`
	Timestamp   string            `json:"timestamp"`
	VectorStore models.IndexStats `json:"vector_store"`
}

type statsResponse struct {
	search.Stats
	Catalog   *storage.Stats `json:"catalog,omitempty"`
	Timestamp string         `json:"timestamp"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "Portfolio RAG API",
		"health":  "/health",
		"chat":    "/chat",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	vs := s.stats.Stats().VectorStore
	status := "ok"
	if !vs.Loaded {
		status = "degraded"
	}
	s.respondJSON(w, http.StatusOK, healthResponse{
		Status:      status,
		Timestamp:   s.timestamp(),
		VectorStore: vs,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req models.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("chat request", zap.String("question", utils.Truncate(req.Question, 100)), zap.Int("history", len(req.History)))

	resp, err := s.chat.Answer(r.Context(), &req)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrInvalidQuestion):
		s.logger.Warn("invalid question", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	default:
		s.logger.Error("chat failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		s.respondError(w, http.StatusInternalServerError, detailGenerate)
		return
	}

	s.logger.Info("chat request completed", zap.Duration("duration", time.Since(start)), zap.Int("sources", len(resp.Sources)))
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChatStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{Stats: s.stats.Stats(), Timestamp: s.timestamp()}
	if s.catalog != nil {
		cs, err := s.catalog.Stats(r.Context())
		if err != nil {
			s.logger.Error("stats: catalog failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, detailStats)
			return
		}
		resp.Catalog = cs
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusNotFound, errorResponse{
		Error:              http.StatusText(http.StatusNotFound),
		Detail:             fmt.Sprintf("The endpoint %s was not found.", r.URL.Path),
		AvailableEndpoints: AvailableEndpoints,
	})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s is not allowed on %s.", r.Method, r.URL.Path))
}

func (s *Server) timestamp() string {
	return s.now().Format(time.RFC3339)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, detail string) {
	s.respondJSON(w, status, errorResponse{Error: http.StatusText(status), Detail: detail})
}
