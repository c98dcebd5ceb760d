package main

import (
	"errors"
	"fmt"
	"io/fs"

	"go.uber.org/zap"

	"github.com/hyperjump/portfolio-rag/internal/chat"
	"github.com/hyperjump/portfolio-rag/internal/config"
	"github.com/hyperjump/portfolio-rag/internal/embedding"
	"github.com/hyperjump/portfolio-rag/internal/indexer"
	"github.com/hyperjump/portfolio-rag/internal/loader"
	"github.com/hyperjump/portfolio-rag/internal/provider"
	"github.com/hyperjump/portfolio-rag/internal/ranking"
	"github.com/hyperjump/portfolio-rag/internal/search"
	"github.com/hyperjump/portfolio-rag/internal/storage"
	"github.com/hyperjump/portfolio-rag/internal/vector"
)

// errNoAPIKey is returned when a command needs the hosted provider but no key is configured.
var errNoAPIKey = errors.New("MISTRAL_API_KEY is not set (or provider.api_key in the config file)")

// Components holds initialized services.
type Components struct {
	Config    *config.Config
	Handle    *vector.Handle
	Catalog   *storage.SQLiteCatalog
	Embedder  embedding.Embedder
	DiskCache *embedding.BoltCache
	Loader    *loader.Loader
	Engine    *search.Engine
	Pipeline  *indexer.Pipeline
	Chat      *chat.Service
}

// componentOptions selects what initializeComponents builds.
type componentOptions struct {
	// provider builds the embedder and, with chat, the chat client. Requires an API key.
	provider bool
	chat     bool
	// loadIndex loads the persisted index into the handle.
	loadIndex bool
	progress  indexer.ProgressFunc
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.DiskCache != nil {
		_ = c.DiskCache.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
}

func providerConfig(cfg *config.Config) provider.Config {
	return provider.Config{
		BaseURL:           cfg.Provider.BaseURL,
		APIKey:            cfg.Provider.APIKey,
		Timeout:           cfg.Provider.Timeout,
		MaxRetries:        cfg.Provider.MaxRetriesOrDefault(),
		RequestsPerSecond: cfg.Provider.RequestsPerSecond,
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, opts componentOptions) (*Components, error) {
	c := &Components{Config: cfg, Handle: vector.NewHandle(nil)}

	catalog, err := storage.NewSQLiteCatalog(cfg.Storage.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}
	c.Catalog = catalog

	if opts.loadIndex {
		loadIndex(cfg, c.Handle, logger)
	}

	var retrier *provider.Retrier
	if opts.provider {
		if cfg.Provider.APIKey == "" {
			c.Close()
			return nil, errNoAPIKey
		}
		retrier = provider.NewRetrier(providerConfig(cfg), logger)
		if err := c.initEmbedder(cfg, retrier, logger); err != nil {
			c.Close()
			return nil, err
		}
	}

	c.Engine = search.NewEngine(c.Handle, c.Embedder, search.Config{
		TopK:          cfg.Retrieval.TopK,
		MaxChunkChars: cfg.Retrieval.MaxChunkChars,
		Priorities:    ranking.PriorityTable(cfg.Retrieval.SourcePriority),
	}, logger)

	if opts.provider && opts.chat {
		if err := c.initChat(cfg, retrier, logger); err != nil {
			c.Close()
			return nil, err
		}
	}

	c.Loader = loader.New(cfg.Knowledge.Dir, cfg.Knowledge.Include, cfg.Knowledge.Exclude, logger)
	if c.Embedder != nil {
		pipelineOpts := []indexer.PipelineOption{indexer.WithLogger(logger), indexer.WithCatalog(catalog)}
		if opts.progress != nil {
			pipelineOpts = append(pipelineOpts, indexer.WithProgress(opts.progress))
		}
		c.Pipeline = indexer.NewPipeline(
			c.Loader,
			indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap),
			c.Embedder,
			indexer.Options{
				IndexKind:  cfg.Retrieval.IndexKind,
				VectorPath: cfg.Storage.VectorPath,
				ChunksPath: cfg.Storage.ChunksPath,
				BatchSize:  cfg.Provider.EmbedBatchSize,
			},
			pipelineOpts...,
		)
	}
	return c, nil
}

// loadIndex publishes the persisted index into h. Serving continues without one: a missing
// index has not been ingested yet, anything else means the files on disk are unusable.
func loadIndex(cfg *config.Config, h *vector.Handle, logger *zap.Logger) bool {
	idx, err := vector.Load(cfg.Storage.VectorPath, cfg.Storage.ChunksPath)
	switch {
	case err == nil:
		h.Swap(idx)
		logger.Info("Vector index loaded",
			zap.Int("chunks", idx.Size()), zap.Int("dimension", idx.Dimension()), zap.String("kind", string(idx.Kind())))
		return true
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("Vector index not found; run ingest first",
			zap.String("vectors", cfg.Storage.VectorPath), zap.String("chunks", cfg.Storage.ChunksPath))
	default:
		logger.Error("Vector index could not be loaded; re-run ingest to rebuild it",
			zap.String("vectors", cfg.Storage.VectorPath), zap.String("chunks", cfg.Storage.ChunksPath), zap.Error(err))
	}
	return false
}

// initEmbedder builds the cached Mistral embedder. The retrier is shared with the chat
// client so one rate limiter paces every provider call.
func (c *Components) initEmbedder(cfg *config.Config, retrier *provider.Retrier, logger *zap.Logger) error {
	mistral, err := embedding.NewMistralEmbedder(embedding.MistralConfig{
		Provider:  providerConfig(cfg),
		Model:     cfg.Provider.EmbedModel,
		BatchSize: cfg.Provider.EmbedBatchSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}
	mistral.WithRetrier(retrier)

	if cfg.Storage.EmbedCachePath != "" {
		disk, err := embedding.OpenBoltCache(cfg.Storage.EmbedCachePath)
		if err != nil {
			// Another process (a running server or ingest) may hold the bolt lock.
			logger.Warn("Embedding cache unavailable", zap.String("path", cfg.Storage.EmbedCachePath), zap.Error(err))
		} else {
			c.DiskCache = disk
		}
	}
	c.Embedder = embedding.NewCachedEmbedder(mistral, embedding.NewEmbeddingCache(cfg.Cache.Size), c.DiskCache, logger)
	return nil
}

func (c *Components) initChat(cfg *config.Config, retrier *provider.Retrier, logger *zap.Logger) error {
	client, err := chat.NewMistralClient(chat.MistralConfig{
		Provider:    providerConfig(cfg),
		Model:       cfg.Provider.ChatModel,
		MaxTokens:   cfg.Provider.MaxTokens,
		Temperature: cfg.Provider.TemperatureOrDefault(),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize chat client: %w", err)
	}
	client.WithRetrier(retrier)

	prompt := chat.NewPromptBuilder(cfg.Retrieval.MaxContextChars, chat.MaxHistoryMessages)
	c.Chat = chat.NewService(c.Engine, client, prompt, cfg.Retrieval.TopK, logger)
	return nil
}
