// Package main is the Veridoc CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperfocal/veridoc/internal/answer"
	"github.com/hyperfocal/veridoc/internal/config"
	"github.com/hyperfocal/veridoc/internal/confidence"
	"github.com/hyperfocal/veridoc/internal/embedding"
	"github.com/hyperfocal/veridoc/internal/extract"
	"github.com/hyperfocal/veridoc/internal/generate"
	"github.com/hyperfocal/veridoc/internal/server"
	"github.com/hyperfocal/veridoc/internal/session"
	"github.com/hyperfocal/veridoc/internal/storage"
	"github.com/hyperfocal/veridoc/internal/watcher"
	"github.com/hyperfocal/veridoc/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/veridoc/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); when neither
// exists the built-in defaults are used.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), "(defaults)", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// Missing .env is fine; the environment may carry the key directly.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "ingest":
		runIngest()
	case "delete-session":
		runDeleteSession()
	case "version", "--version", "-v":
		fmt.Printf("veridoc version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`Usage: veridoc <command> [flags]

Commands:
  server           start the HTTP API server
  ask              answer a question against the global corpus
  ingest           add a document file to the global corpus
  delete-session   remove a session and all its data
  version          print version
  help             show this help

Run 'veridoc <command> -h' for command flags.
`)
}

// components bundles everything the pipeline needs, with a single Close.
type components struct {
	Logger       *zap.Logger
	ChunkStore   *storage.SQLiteStore
	Embedder     embedding.Embedder
	Sessions     *session.Store
	Orchestrator *answer.Orchestrator
}

func (c *components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.ChunkStore != nil {
		_ = c.ChunkStore.Close()
	}
}

func newEmbedder(cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		return embedding.NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.Dimensions, cfg.CacheSize), nil
	case "onnx":
		return embedding.NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// newGenerator builds the Gemini client, or returns nil when the API key is
// absent. A nil generator degrades to the deterministic context fallback.
func newGenerator(cfg *config.GenerationConfig, logger *zap.Logger) generate.Generator {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		logger.Warn("generation API key not set, answers will use context fallback",
			zap.String("env", cfg.APIKeyEnv))
		return nil
	}
	return generate.NewGeminiClient(
		cfg.BaseURL,
		cfg.Model,
		apiKey,
		time.Duration(cfg.TimeoutSeconds)*time.Second,
		cfg.MaxOutputTokens,
	)
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	chunkStore, err := storage.NewSQLiteStore(cfg.Storage.ChunkDB())
	if err != nil {
		return nil, fmt.Errorf("open chunk store: %w", err)
	}
	embedder, err := newEmbedder(&cfg.Embedding)
	if err != nil {
		chunkStore.Close()
		return nil, err
	}
	sessions := session.NewStore(
		cfg.Storage.SessionsDir(),
		cfg.Upload.MaxFileSizeBytes(),
		cfg.Upload.Extensions,
		logger,
	)
	orc, err := answer.New(answer.Config{
		ChunkSize:           cfg.Chunking.ChunkSize,
		ChunkOverlap:        cfg.Chunking.ChunkOverlap,
		Threshold:           cfg.Answer.ConfidenceThreshold,
		TopK:                cfg.Answer.TopK,
		GlobalDocumentsDir:  cfg.Storage.DocumentsDir(),
		GlobalEmbeddingsDir: cfg.Storage.EmbeddingsDir(),
		GlobalIndexDir:      cfg.Storage.IndexDir(),
		Extensions:          cfg.Upload.Extensions,
	},
		embedder,
		newGenerator(&cfg.Generation, logger),
		chunkStore,
		sessions,
		extract.NewExtractor(logger),
		confidence.NewRefuser(cfg.Answer.RefusalSeed),
		logger,
	)
	if err != nil {
		embedder.Close()
		chunkStore.Close()
		return nil, err
	}
	return &components{
		Logger:       logger,
		ChunkStore:   chunkStore,
		Embedder:     embedder,
		Sessions:     sessions,
		Orchestrator: orc,
	}, nil
}

func mustSetup(configPath string, debugFlag bool) (*config.Config, *components, string) {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debugFlag)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, comps, resolvedPath
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, comps, resolvedPath := mustSetup(*configPath, *debug)
	defer comps.Close()
	logger := comps.Logger
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedPath),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.Enabled {
		w := watcher.NewWatcher(
			cfg.Storage.DocumentsDir(),
			cfg.Upload.Extensions,
			func(path string) {
				if err := comps.Orchestrator.ReindexGlobal(context.Background()); err != nil {
					logger.Warn("reindex after change failed",
						zap.String("path", path), zap.Error(err))
				}
			},
			logger,
		)
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(comps.Orchestrator, &cfg.Server, cfg.Upload.MaxFileSizeBytes(), logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	sessionID := fs.String("session", "", "session id (empty = global corpus)")
	_ = fs.Parse(os.Args[2:])

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Println("Usage: veridoc ask [flags] <question>")
		os.Exit(1)
	}

	_, comps, _ := mustSetup(*configPath, false)
	defer comps.Close()

	response, err := comps.Orchestrator.Answer(context.Background(), question, *sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(response)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: veridoc ingest [flags] <file> [file ...]")
		os.Exit(1)
	}

	cfg, comps, _ := mustSetup(*configPath, false)
	defer comps.Close()

	docsDir := cfg.Storage.DocumentsDir()
	if err := os.MkdirAll(docsDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	for _, src := range fs.Args() {
		dst := filepath.Join(docsDir, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			fmt.Fprintf(os.Stderr, "Ingest failed for %s: %v\n", src, err)
			os.Exit(1)
		}
		fmt.Printf("Added %s\n", filepath.Base(src))
	}
	if err := comps.Orchestrator.ReindexGlobal(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Reindex failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Global corpus reindexed.")
}

func runDeleteSession() {
	fs := flag.NewFlagSet("delete-session", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() != 1 {
		fmt.Println("Usage: veridoc delete-session [flags] <session-id>")
		os.Exit(1)
	}

	_, comps, _ := mustSetup(*configPath, false)
	defer comps.Close()

	removed, err := comps.Orchestrator.DeleteSession(context.Background(), fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	if !removed {
		fmt.Println("Session not found.")
		os.Exit(1)
	}
	fmt.Println("Session deleted.")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
