package embedding

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/openai/openai-go"
	"go.uber.org/zap"

	"github.com/hyperjump/portfolio-rag/internal/models"
	"github.com/hyperjump/portfolio-rag/internal/provider"
	"github.com/hyperjump/portfolio-rag/pkg/utils"
)

// Default configuration values.
const (
	DefaultModel = "mistral-embed"
	// MaxBatchSize is the most inputs sent in one embeddings request.
	MaxBatchSize = 128
)

// MistralConfig holds configuration for the Mistral embedder.
type MistralConfig struct {
	Provider provider.Config
	// Model is the embedding model (default: mistral-embed).
	Model string
	// BatchSize caps inputs per request; values above MaxBatchSize are clamped.
	BatchSize int
}

// MistralEmbedder embeds text with Mistral's OpenAI-compatible embeddings endpoint.
type MistralEmbedder struct {
	client     openai.Client
	retrier    *provider.Retrier
	model      string
	batchSize  int
	dimensions atomic.Int64
	logger     *zap.Logger
}

// NewMistralEmbedder creates an embedder. The dimension is learned from the first response.
func NewMistralEmbedder(cfg MistralConfig, logger *zap.Logger) (*MistralEmbedder, error) {
	if cfg.Provider.APIKey == "" {
		return nil, fmt.Errorf("mistral: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	logger = utils.OrNop(logger)
	return &MistralEmbedder{
		client:    provider.NewClient(cfg.Provider),
		retrier:   provider.NewRetrier(cfg.Provider, logger),
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		logger:    logger,
	}, nil
}

// WithRetrier replaces the retry policy.
func (e *MistralEmbedder) WithRetrier(r *provider.Retrier) *MistralEmbedder {
	e.retrier = r
	return e
}

// Embed returns the embedding for one text.
func (e *MistralEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch returns one embedding per text, in input order.
func (e *MistralEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts to embed", models.ErrEmptyInput)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *MistralEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	var resp *openai.CreateEmbeddingResponse
	err := e.retrier.Do(ctx, "mistral embeddings", func(ctx context.Context) error {
		var err error
		resp, err = e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
			Model:          openai.EmbeddingModel(e.model),
			EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("mistral: got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		vec := utils.Float64sToFloat32s(d.Embedding)
		if err := e.checkDimension(len(vec)); err != nil {
			return nil, err
		}
		out[i] = vec
	}
	e.logger.Debug("Embedded batch", zap.Int("inputs", len(texts)), zap.Int64("prompt_tokens", resp.Usage.PromptTokens))
	return out, nil
}

func (e *MistralEmbedder) checkDimension(n int) error {
	if n == 0 {
		return fmt.Errorf("%w: provider returned an empty embedding", models.ErrDimensionMismatch)
	}
	if e.dimensions.CompareAndSwap(0, int64(n)) {
		return nil
	}
	if want := e.dimensions.Load(); int64(n) != want {
		return fmt.Errorf("%w: provider returned %d components, expected %d", models.ErrDimensionMismatch, n, want)
	}
	return nil
}

// Dimensions returns the learned embedding dimension, or 0 before the first call.
func (e *MistralEmbedder) Dimensions() int {
	return int(e.dimensions.Load())
}

// Model returns the embedding model name.
func (e *MistralEmbedder) Model() string {
	return e.model
}

// Close is a no-op; the HTTP client needs no teardown.
func (e *MistralEmbedder) Close() error {
	return nil
}
