package config

import "time"

// Default values, matching the service's documented behaviour.
const (
	DefaultHost            = "localhost"
	DefaultPort            = 8000
	DefaultRequestTimeout  = 60 * time.Second
	DefaultVectorPath      = "storage/vectors.bin"
	DefaultChunksPath      = "storage/chunks.jsonl"
	DefaultCatalogPath     = "storage/catalog.db"
	DefaultEmbedCachePath  = "storage/embeddings.db"
	DefaultKnowledgeDir    = "knowledge"
	DefaultDebounce        = 2 * time.Second
	DefaultChunkSize       = 800
	DefaultChunkOverlap    = 150
	DefaultTopK            = 5
	DefaultIndexKind       = "flat_ip"
	DefaultMaxContextChars = 3000
	DefaultMaxChunkChars   = 500
	DefaultBaseURL         = "https://api.mistral.ai"
	DefaultChatModel       = "mistral-large-latest"
	DefaultEmbedModel      = "mistral-embed"
	DefaultMaxTokens       = 1024
	DefaultTemperature     = 0.2
	DefaultTimeout         = 60 * time.Second
	DefaultMaxRetries      = 3
	DefaultEmbedBatchSize  = 100
	DefaultCacheSize       = 256
)

// DefaultCORSOrigins are the local frontend dev servers.
func DefaultCORSOrigins() []string {
	return []string{"http://localhost:5173", "http://localhost:3000"}
}

// DefaultSourcePriority is the built-in per-source boost table.
func DefaultSourcePriority() map[string]float64 {
	return map[string]float64{
		"experience.json":      1.3,
		"projects.json":        1.1,
		"about.md":             1.05,
		"education.json":       1.0,
		"extracurricular.json": 0.95,
		"projects_social.json": 0.9,
	}
}

// DefaultInclude matches every file type the loader understands.
func DefaultInclude() []string {
	return []string{"**/*.md", "**/*.json", "**/*.txt", "**/*.pdf", "**/*.docx", "**/*.xlsx", "**/*.rtf", "**/*.odt"}
}

// Default returns a configuration with every default applied and relative paths kept
// relative to the working directory.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = DefaultCORSOrigins()
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Storage.VectorPath == "" {
		cfg.Storage.VectorPath = DefaultVectorPath
	}
	if cfg.Storage.ChunksPath == "" {
		cfg.Storage.ChunksPath = DefaultChunksPath
	}
	if cfg.Storage.CatalogPath == "" {
		cfg.Storage.CatalogPath = DefaultCatalogPath
	}
	if cfg.Storage.EmbedCachePath == "" {
		cfg.Storage.EmbedCachePath = DefaultEmbedCachePath
	}
	if cfg.Knowledge.Dir == "" {
		cfg.Knowledge.Dir = DefaultKnowledgeDir
	}
	if cfg.Knowledge.Include == nil {
		cfg.Knowledge.Include = DefaultInclude()
	}
	if cfg.Knowledge.Debounce == 0 {
		cfg.Knowledge.Debounce = DefaultDebounce
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = DefaultChunkSize
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}
	if cfg.Retrieval.IndexKind == "" {
		cfg.Retrieval.IndexKind = DefaultIndexKind
	}
	if cfg.Retrieval.SourcePriority == nil {
		cfg.Retrieval.SourcePriority = DefaultSourcePriority()
	}
	if cfg.Retrieval.MaxContextChars == 0 {
		cfg.Retrieval.MaxContextChars = DefaultMaxContextChars
	}
	if cfg.Retrieval.MaxChunkChars == 0 {
		cfg.Retrieval.MaxChunkChars = DefaultMaxChunkChars
	}
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = DefaultBaseURL
	}
	if cfg.Provider.ChatModel == "" {
		cfg.Provider.ChatModel = DefaultChatModel
	}
	if cfg.Provider.EmbedModel == "" {
		cfg.Provider.EmbedModel = DefaultEmbedModel
	}
	if cfg.Provider.MaxTokens == 0 {
		cfg.Provider.MaxTokens = DefaultMaxTokens
	}
	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = DefaultTimeout
	}
	if cfg.Provider.EmbedBatchSize == 0 {
		cfg.Provider.EmbedBatchSize = DefaultEmbedBatchSize
	}
	if cfg.Cache.Size == 0 {
		cfg.Cache.Size = DefaultCacheSize
	}
}
