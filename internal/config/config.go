// Package config provides configuration loading and structs for the portfolio-rag service.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Provider  ProviderConfig  `yaml:"provider"`
	Cache     CacheConfig     `yaml:"cache"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds paths for the persisted index, the catalog, and the embedding cache.
type StorageConfig struct {
	VectorPath     string `yaml:"vector_path"`
	ChunksPath     string `yaml:"chunks_path"`
	CatalogPath    string `yaml:"catalog_path"`
	EmbedCachePath string `yaml:"embed_cache_path"`
}

// KnowledgeConfig describes the directory of source documents.
type KnowledgeConfig struct {
	Dir      string        `yaml:"dir"`
	Include  []string      `yaml:"include"`
	Exclude  []string      `yaml:"exclude"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// ChunkingConfig holds chunk sizes in estimated tokens.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// RetrievalConfig holds ranking and context settings.
type RetrievalConfig struct {
	TopK            int                `yaml:"top_k"`
	IndexKind       string             `yaml:"index_kind"`
	SourcePriority  map[string]float64 `yaml:"source_priority"`
	MaxContextChars int                `yaml:"max_context_chars"`
	MaxChunkChars   int                `yaml:"max_chunk_chars"`
}

// ProviderConfig holds the hosted model settings.
type ProviderConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	ChatModel         string        `yaml:"chat_model"`
	EmbedModel        string        `yaml:"embed_model"`
	MaxTokens         int           `yaml:"max_tokens"`
	Temperature       *float64      `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        *int          `yaml:"max_retries"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	EmbedBatchSize    int           `yaml:"embed_batch_size"`
}

// TemperatureOrDefault returns the sampling temperature; defaults to 0.2 when unset.
func (p *ProviderConfig) TemperatureOrDefault() float64 {
	if p.Temperature != nil {
		return *p.Temperature
	}
	return DefaultTemperature
}

// MaxRetriesOrDefault returns the retry count; defaults to 3 when unset.
func (p *ProviderConfig) MaxRetriesOrDefault() int {
	if p.MaxRetries != nil {
		return *p.MaxRetries
	}
	return DefaultMaxRetries
}

// CacheConfig holds in-memory cache settings.
type CacheConfig struct {
	Size int `yaml:"size"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	cfg.expandPaths(filepath.Dir(path))
	return &cfg, nil
}

// Resolve builds the effective configuration: .env is loaded into the environment, the file
// at path is read if it exists (otherwise defaults are used), environment overrides are
// applied, and the result is validated. An empty path means defaults plus environment.
func Resolve(path string) (*Config, error) {
	LoadDotEnv()

	var cfg *Config
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, fs.ErrNotExist):
			cfg = Default()
		default:
			return nil, err
		}
	} else {
		cfg = Default()
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Write encodes cfg as YAML to w.
func Write(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return enc.Close()
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Provider.APIKey != "" {
		out.Provider.APIKey = "********"
	}
	return &out
}

func (c *Config) expandPaths(configDir string) {
	c.Storage.VectorPath = expandPath(c.Storage.VectorPath, configDir)
	c.Storage.ChunksPath = expandPath(c.Storage.ChunksPath, configDir)
	c.Storage.CatalogPath = expandPath(c.Storage.CatalogPath, configDir)
	c.Storage.EmbedCachePath = expandPath(c.Storage.EmbedCachePath, configDir)
	c.Knowledge.Dir = expandPath(c.Knowledge.Dir, configDir)
}

// expandPath makes a relative path relative to configDir. Absolute paths and "~/" paths
// (resolved against the home directory) are left independent of the config location.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	return filepath.Join(configDir, path)
}
