package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/portfolio-rag/internal/models"
	"github.com/hyperjump/portfolio-rag/internal/search"
	"github.com/hyperjump/portfolio-rag/pkg/utils"
)

// Retriever finds and formats context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (*models.Retrieval, error)
}

// Service answers chat requests: validate, retrieve, prompt, complete.
type Service struct {
	retriever Retriever
	completer Completer
	prompt    *PromptBuilder
	topK      int
	logger    *zap.Logger
}

// NewService creates a chat service. topK <= 0 defers to the retriever's default.
func NewService(retriever Retriever, completer Completer, prompt *PromptBuilder, topK int, logger *zap.Logger) *Service {
	if prompt == nil {
		prompt = NewPromptBuilder(0, 0)
	}
	return &Service{
		retriever: retriever,
		completer: completer,
		prompt:    prompt,
		topK:      topK,
		logger:    utils.OrNop(logger),
	}
}

// Answer returns the model's reply and the sources behind it.
// Errors wrap models.ErrInvalidQuestion for bad input; anything else is a provider failure.
// A retrieval failure is not an error: the answer is generated from the fallback context.
func (s *Service) Answer(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		s.logger.Warn("Invalid question", zap.Error(err))
		return nil, err
	}

	intent := DetectIntent(req.Question)
	s.logger.Info("Processing chat request",
		zap.String("question", utils.Truncate(req.Question, 100)),
		zap.String("intent", intent.Intent),
		zap.Float64("confidence", intent.Confidence))

	retrieval, err := s.retriever.Retrieve(ctx, req.Question, s.topK)
	if err != nil {
		if errors.Is(err, models.ErrEmptyQuery) {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidQuestion, err)
		}
		if models.IsExpected(err) {
			s.logger.Warn("Answering without context", zap.Error(err))
		} else {
			s.logger.Error("Retrieval failed, answering without context", zap.Error(err))
		}
		if retrieval == nil {
			retrieval = search.Fallback()
		}
	}

	messages := s.prompt.BuildMessages(req.Question, retrieval.Context, req.History)
	answer, err := s.completer.Complete(ctx, messages)
	if err != nil {
		s.logger.Error("Chat completion failed", zap.Error(err))
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	s.logger.Info("Chat request completed",
		zap.Duration("took", time.Since(start)),
		zap.Int("sources", len(retrieval.Sources)))
	return &models.ChatResponse{Answer: answer, Sources: retrieval.Sources}, nil
}
