// Package main is the portfolio-rag CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/hyperjump/portfolio-rag/internal/cli"
	"github.com/hyperjump/portfolio-rag/internal/config"
	"github.com/hyperjump/portfolio-rag/internal/indexer"
	"github.com/hyperjump/portfolio-rag/internal/server"
	"github.com/hyperjump/portfolio-rag/internal/storage"
	"github.com/hyperjump/portfolio-rag/internal/watcher"
	"github.com/hyperjump/portfolio-rag/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "config.yaml"
	rebuildTimeout    = 10 * time.Minute
	shutdownTimeout   = 10 * time.Second
)

// loadConfig resolves the effective config: the file at path when it exists, otherwise
// defaults, then .env and environment overrides.
func loadConfig(path string) (*config.Config, error) {
	return config.Resolve(path)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "query":
		runQuery()
	case "stats":
		runStats()
	case "config":
		runConfig()
	case "version", "--version", "-v":
		fmt.Printf("portfolio-rag version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and creates the logger, exiting on failure.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", *configPath), zap.Bool("debug", cfg.Debug || *debug))

	components, err := initializeComponents(cfg, logger, componentOptions{provider: true, chat: true, loadIndex: true})
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Knowledge.Watch {
		w := newKnowledgeWatcher(components, logger, cfg.Debug || *debug)
		if err := w.Start(watchCtx); err != nil {
			logger.Warn("Knowledge watcher not started", zap.String("dir", cfg.Knowledge.Dir), zap.Error(err))
		} else {
			defer w.Stop()
			logger.Info("Watching knowledge directory", zap.String("dir", cfg.Knowledge.Dir))
		}
	}

	srv := server.NewServer(components.Chat, components.Engine, components.Catalog, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = srv.Stop(ctx)
}

// newKnowledgeWatcher rebuilds and swaps the index whenever matching knowledge files change.
func newKnowledgeWatcher(c *Components, logger *zap.Logger, debug bool) *watcher.Watcher {
	opts := []watcher.WatcherOption{watcher.WithDebounce(c.Config.Knowledge.Debounce)}
	if debug {
		opts = append(opts, watcher.WithLogger(logger))
	}
	onChange := func(changed []string) {
		logger.Info("Knowledge changed, rebuilding index", zap.Strings("files", changed))
		ctx, cancel := context.WithTimeout(context.Background(), rebuildTimeout)
		defer cancel()
		summary, err := c.Pipeline.Rebuild(ctx, c.Handle)
		if err != nil {
			logger.Error("Rebuild failed; keeping previous index", zap.Error(err))
			return
		}
		logger.Info("Rebuild complete", zap.Int("chunks", summary.Chunks), zap.String("run_id", summary.RunID))
	}
	return watcher.NewWatcher(c.Config.Knowledge.Dir, c.Loader.Matches, onChange, opts...)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	noProgress := fs.Bool("no-progress", false, "disable the progress bar")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	var progress indexer.ProgressFunc
	if !*noProgress {
		progress = newProgressReporter()
	}
	components, err := initializeComponents(cfg, logger, componentOptions{provider: true, progress: progress})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Ingesting %s...\n", cfg.Knowledge.Dir)
	_, summary, err := components.Pipeline.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		components.Close()
		os.Exit(1)
	}
	cli.WriteIngestSummary(os.Stdout, summary)
}

// newProgressReporter returns a ProgressFunc drawing an embedding progress bar, created
// once the chunk total is known.
func newProgressReporter() indexer.ProgressFunc {
	var (
		bar *progressbar.ProgressBar
		mu  sync.Mutex
	)
	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			)
		}
		_ = bar.Set(done)
	}
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printQueryUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: portfolio-rag query [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "Prints the ranked chunks the chat endpoint would use as context, with raw and boosted scores.\n\n")
	fs.PrintDefaults()
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	k := fs.Int("k", 0, "number of results (default: retrieval.top_k)")
	outputFormat := fs.String("format", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() { printQueryUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	question := buildQuery(fs.Args())
	if question == "" {
		printQueryUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, componentOptions{provider: true, loadIndex: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	topK := *k
	if topK <= 0 {
		topK = cfg.Retrieval.TopK
	}
	start := time.Now()
	retrieval, err := components.Engine.Retrieve(context.Background(), question, topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		components.Close()
		os.Exit(1)
	}
	report := cli.NewQueryReport(question, topK, time.Since(start), retrieval)
	if err := cli.WriteQueryResults(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, logger := setup(*configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, componentOptions{loadIndex: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	report, err := buildStatsReport(context.Background(), components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
		components.Close()
		os.Exit(1)
	}
	if err := cli.WriteStats(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func buildStatsReport(ctx context.Context, c *Components) (*cli.StatsReport, error) {
	catalogStats, err := c.Catalog.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	s := c.Config.Storage
	diskBytes, err := storage.DiskUsageBytes(s.VectorPath, s.ChunksPath, s.CatalogPath, s.EmbedCachePath)
	if err != nil {
		return nil, fmt.Errorf("disk usage: %w", err)
	}
	return &cli.StatsReport{
		Retrieval: c.Engine.Stats(),
		Catalog:   catalogStats,
		DiskBytes: diskBytes,
	}, nil
}

func runConfig() {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	out := fs.String("o", "", "write the effective config (API key redacted) to this path instead of stdout")
	_ = fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	redacted := cfg.Redacted()
	if *out != "" {
		if err := config.Save(*out, redacted); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config written to %s\n", *out)
		return
	}
	if err := config.Write(os.Stdout, redacted); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`portfolio-rag - Retrieval-augmented career assistant backend

Usage:
  portfolio-rag server [flags]             Start the HTTP API
  portfolio-rag ingest [flags]             Build the vector index from the knowledge directory
  portfolio-rag query [flags] <question>   Show the ranked context for a question
  portfolio-rag stats [flags]              Show index and catalog statistics
  portfolio-rag config [flags]             Print the effective configuration
  portfolio-rag version                    Show version
  portfolio-rag help                       Show this help

Common Flags:
  --config string    Config file path (default: config.yaml; defaults and environment are used when missing)

Server Flags:
  --debug            Enable debug logging

Ingest Flags:
  --no-progress      Disable the progress bar

Query Flags:
  --k int            Number of results (default: retrieval.top_k)
  --format string    Output format: text or json (default: text)

Stats Flags:
  --format string    Output format: text or json (default: text)

Config Flags:
  -o string          Write the effective config to a file

Environment:
  MISTRAL_API_KEY, MISTRAL_BASE_URL, MISTRAL_CHAT_MODEL, MISTRAL_EMBED_MODEL,
  TOP_K, CHUNK_SIZE, CHUNK_OVERLAP, FRONTEND_ORIGIN, KNOWLEDGE_DIR, PORT
  A .env file in the working directory is loaded first.

Examples:
  portfolio-rag ingest
  portfolio-rag query "What did you work on at your last job?"
  portfolio-rag query --format json --k 3 "python experience"
  portfolio-rag server --debug
  portfolio-rag stats --format json`)
}
