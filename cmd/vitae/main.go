package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/vitaehq/vitae/pkg/config"
	"github.com/vitaehq/vitae/pkg/ingest"
	"github.com/vitaehq/vitae/pkg/llm"
	"github.com/vitaehq/vitae/pkg/rag"
	"github.com/vitaehq/vitae/pkg/store"
	"github.com/vitaehq/vitae/server"
)

func main() {
	var configPath string
	var addr string

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&addr, "addr", "", "Listen address (overrides config)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	// .env is optional; deployed environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			slog.Error("invalid config", "field", e.Field, "message", e.Message)
		}
		os.Exit(1)
	}

	if addr == "" {
		addr = cfg.Server.Addr()
	}

	if err := run(cfg, addr); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, addr string) error {
	ingestor := ingest.NewWithConfig(ingest.IngestorConfig{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
	})

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		RateLimit: cfg.Embedding.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	generator, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	vectorStore, err := store.NewWithConfig(store.StoreConfig{
		Type:       cfg.Store.Type,
		Index:      cfg.Store.Index,
		Host:       cfg.Store.Host,
		Port:       cfg.Store.Port,
		APIKey:     cfg.Store.APIKey,
		ConnString: cfg.Store.DatabaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	defer vectorStore.Close()

	// An index with the wrong dimension is unusable; refuse to start.
	if err := vectorStore.EnsureIndex(context.Background(), embedder.Dimension()); err != nil {
		return fmt.Errorf("failed to prepare index %q: %w", cfg.Store.Index, err)
	}

	pipeline := &rag.Pipeline{
		Ingestor:  ingestor,
		Embedder:  embedder,
		Store:     vectorStore,
		Generator: generator,
		TopK:      cfg.Retrieval.TopK,
	}

	srv := server.New(addr, pipeline)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening",
			"addr", addr,
			"store", cfg.Store.Type,
			"index", cfg.Store.Index,
			"embedding_model", cfg.Embedding.Model,
			"llm_model", cfg.LLM.Model)
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
