package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyperjump/portfolio-rag/internal/config"
	"github.com/hyperjump/portfolio-rag/internal/embedding"
	"github.com/hyperjump/portfolio-rag/internal/indexer"
	"github.com/hyperjump/portfolio-rag/internal/loader"
	"github.com/hyperjump/portfolio-rag/internal/models"
	"github.com/hyperjump/portfolio-rag/internal/vector"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"python experience", "-k", "3"},
			expected: []string{"-k", "3", "python experience"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-k", "3", "python experience"},
			expected: []string{"-k", "3", "python experience"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"python experience"},
			expected: []string{"python experience"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"where", "did", "you", "study", "-format", "json"},
			expected: []string{"-format", "json", "where", "did", "you", "study"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"python"}, "python"},
		{"multiple words", []string{"python", "experience"}, "python experience"},
		{"single quoted phrase", []string{"python experience"}, "python experience"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  catalog_path: "data/catalog.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "")

	cfg, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.CatalogPath != filepath.Join(dir, "data", "catalog.db") {
		t.Errorf("catalog path not expanded: %s", cfg.Storage.CatalogPath)
	}
}

func TestLoadConfig_missingFileUsesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TOP_K", "")
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != config.DefaultPort || cfg.Retrieval.TopK != config.DefaultTopK {
		t.Errorf("expected defaults, got port=%d top_k=%d", cfg.Server.Port, cfg.Retrieval.TopK)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Provider.APIKey = ""
	cfg.Knowledge.Dir = filepath.Join(dir, "knowledge")
	cfg.Storage.VectorPath = filepath.Join(dir, "storage", "vectors.bin")
	cfg.Storage.ChunksPath = filepath.Join(dir, "storage", "chunks.jsonl")
	cfg.Storage.CatalogPath = filepath.Join(dir, "storage", "catalog.db")
	cfg.Storage.EmbedCachePath = filepath.Join(dir, "storage", "embeddings.db")
	if err := os.MkdirAll(cfg.Knowledge.Dir, 0755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestInitializeComponents_requiresAPIKey(t *testing.T) {
	cfg := testConfig(t)
	_, err := initializeComponents(cfg, zap.NewNop(), componentOptions{provider: true})
	if !errors.Is(err, errNoAPIKey) {
		t.Errorf("expected errNoAPIKey, got %v", err)
	}
}

func TestInitializeComponents_statsOnly(t *testing.T) {
	cfg := testConfig(t)
	c, err := initializeComponents(cfg, zap.NewNop(), componentOptions{loadIndex: true})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.Handle.Loaded() {
		t.Error("no index was ingested; handle should be empty")
	}
	if c.Pipeline != nil || c.Chat != nil {
		t.Error("provider-backed components should not be built without the provider option")
	}

	report, err := buildStatsReport(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if report.Retrieval.VectorStore.Loaded || report.Catalog.Runs != 0 {
		t.Errorf("unexpected stats: %+v", report)
	}
}

func TestStatsAfterIngest(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(filepath.Join(cfg.Knowledge.Dir, "about.md"), []byte("# About\n\nI write Go services."), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := initializeComponents(cfg, zap.NewNop(), componentOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	// Ingest with the deterministic embedder so no provider is needed.
	p := indexer.NewPipeline(
		loader.New(cfg.Knowledge.Dir, cfg.Knowledge.Include, cfg.Knowledge.Exclude, zap.NewNop()),
		indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap),
		embedding.NewMockEmbedder(8),
		indexer.Options{VectorPath: cfg.Storage.VectorPath, ChunksPath: cfg.Storage.ChunksPath},
		indexer.WithCatalog(c.Catalog),
	)
	if _, err := p.Rebuild(context.Background(), c.Handle); err != nil {
		t.Fatal(err)
	}

	report, err := buildStatsReport(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Retrieval.VectorStore.Loaded || report.Retrieval.VectorStore.TotalChunks != 1 {
		t.Errorf("vector store: %+v", report.Retrieval.VectorStore)
	}
	if report.Catalog.Documents != 1 || report.Catalog.LastRun == nil {
		t.Errorf("catalog: %+v", report.Catalog)
	}
	if report.DiskBytes <= 0 {
		t.Errorf("disk usage should count the saved index, got %d", report.DiskBytes)
	}
}

func TestLoadIndex(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, cfg *config.Config)
		loaded  bool
		level   zapcore.Level
		message string
	}{
		{
			name:    "not ingested",
			prepare: func(*testing.T, *config.Config) {},
			level:   zapcore.WarnLevel,
			message: "Vector index not found; run ingest first",
		},
		{
			name: "corrupt files",
			prepare: func(t *testing.T, cfg *config.Config) {
				if err := os.MkdirAll(filepath.Dir(cfg.Storage.VectorPath), 0755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(cfg.Storage.VectorPath, []byte("not a blob"), 0644); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(cfg.Storage.ChunksPath, []byte("{}\n"), 0644); err != nil {
					t.Fatal(err)
				}
			},
			level:   zapcore.ErrorLevel,
			message: "Vector index could not be loaded; re-run ingest to rebuild it",
		},
		{
			name: "saved index",
			prepare: func(t *testing.T, cfg *config.Config) {
				idx, err := vector.Build([][]float32{{1, 0}}, []models.Chunk{{ID: "about", Text: "I write Go services."}})
				if err != nil {
					t.Fatal(err)
				}
				if err := idx.Save(cfg.Storage.VectorPath, cfg.Storage.ChunksPath); err != nil {
					t.Fatal(err)
				}
			},
			loaded:  true,
			level:   zapcore.InfoLevel,
			message: "Vector index loaded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.prepare(t, cfg)
			core, logs := observer.New(zapcore.DebugLevel)
			h := vector.NewHandle(nil)

			if got := loadIndex(cfg, h, zap.New(core)); got != tt.loaded {
				t.Errorf("loadIndex = %v, want %v", got, tt.loaded)
			}
			if h.Loaded() != tt.loaded {
				t.Errorf("handle loaded = %v, want %v", h.Loaded(), tt.loaded)
			}
			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("expected one log entry, got %d", len(entries))
			}
			if entries[0].Level != tt.level || entries[0].Message != tt.message {
				t.Errorf("logged %s %q, want %s %q", entries[0].Level, entries[0].Message, tt.level, tt.message)
			}
		})
	}
}
