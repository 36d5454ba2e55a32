// Package main provides the entry point for the docugraph HTTP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vpinel/docugraph/internal/assistant"
	"github.com/vpinel/docugraph/internal/config"
	"github.com/vpinel/docugraph/internal/embedding"
	"github.com/vpinel/docugraph/internal/graphstore"
	"github.com/vpinel/docugraph/internal/ingest"
	"github.com/vpinel/docugraph/internal/jobs"
	"github.com/vpinel/docugraph/internal/llm"
	"github.com/vpinel/docugraph/internal/metrics"
	"github.com/vpinel/docugraph/internal/progress"
	"github.com/vpinel/docugraph/internal/server"
)

const version = "0.1.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("docugraph starting",
		"version", version,
		"port", cfg.Port,
		"neo4j_uri", cfg.Neo4jURI,
		"embed_model", cfg.EmbedModel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to Neo4j
	graph, err := graphstore.New(ctx, graphstore.Config{
		URI:                cfg.Neo4jURI,
		User:               cfg.Neo4jUser,
		Password:           cfg.Neo4jPassword,
		Database:           cfg.Neo4jDatabase,
		EmbeddingDimension: cfg.EmbedDimension,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to neo4j", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing neo4j connection")
		_ = graph.Close(context.Background())
	}()

	if err := graph.EnsureSchema(ctx); err != nil {
		logger.Error("failed to initialize graph schema", "error", err)
		os.Exit(1)
	}

	// Connect to Redis for job tracking
	jobStore, err := jobs.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing redis connection")
		_ = jobStore.Close()
	}()

	// Create embedder behind the rate-limiting gateway
	embedder, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		Model:     cfg.EmbedModel,
		Dimension: cfg.EmbedDimension,
	})
	if err != nil {
		logger.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}
	gateway := embedding.NewGateway(embedder, cfg.EmbedRateMax, logger)
	logger.Info("embedder initialized", "model", embedder.Model(), "dimension", embedder.Dimension())

	// Create chat model
	model, err := llm.NewModel(llm.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.LLMModel,
	})
	if err != nil {
		logger.Error("failed to create chat model", "error", err)
		os.Exit(1)
	}

	// Wire the progress hub into the tracker so websocket clients mirror
	// every job mutation.
	collector := metrics.NewCollector()
	hub := progress.NewHub(logger)
	tracker := jobs.NewTracker(jobStore, hub, logger)

	pipeline := ingest.New(tracker, graph, gateway, ingest.Options{
		BatchSize: cfg.BatchSize,
		Metrics:   collector,
		Logger:    logger,
	})
	asker := assistant.New(gateway, graph, model, collector, logger)

	srv := server.New(cfg, server.Deps{
		Tracker:   tracker,
		Hub:       hub,
		Pipeline:  pipeline,
		Assistant: asker,
		Graph:     graph,
		JobStore:  jobStore,
		Metrics:   collector,
		Logger:    logger,
	})

	if err := srv.Run(ctx); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("docugraph stopped")
}
