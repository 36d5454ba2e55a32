// Package cli provides the command-line interface for docugraph.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vpinel/docugraph/internal/config"
	"github.com/vpinel/docugraph/internal/embedding"
	"github.com/vpinel/docugraph/internal/graphstore"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and graph client
	cfg   config.Config
	graph *graphstore.Store
	log   *slog.Logger

	// Lazy-initialized embedding gateway
	gateway *embedding.Gateway
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "docugraph",
	Short: "Document graph ingestion and maintenance",
	Long: `Docugraph ingests documents into a Neo4j knowledge graph: text is
extracted page by page, chunked, embedded, and stored with a vector
index for retrieval.

The CLI covers bulk ingestion and maintenance tasks; the HTTP server
(docugraph-server) covers uploads, progress tracking, and questions.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		var cleanup func() error
		log, cleanup = config.SetupLogger(cfg.LogFile, level)
		cobra.OnFinalize(func() { _ = cleanup() })

		ctx := context.Background()
		var err error
		graph, err = graphstore.New(ctx, graphstore.Config{
			URI:                cfg.Neo4jURI,
			User:               cfg.Neo4jUser,
			Password:           cfg.Neo4jPassword,
			Database:           cfg.Neo4jDatabase,
			EmbeddingDimension: cfg.EmbedDimension,
		}, log)
		if err != nil {
			return fmt.Errorf("connect to neo4j: %w", err)
		}

		if err := graph.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("initialize graph schema: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if graph != nil {
			_ = graph.Close(context.Background())
		}
	},
}

// initGateway creates the rate-limited embedding gateway on first use, so
// commands that never embed do not require an API key.
func initGateway() error {
	if gateway != nil {
		return nil
	}
	embedder, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		Model:     cfg.EmbedModel,
		Dimension: cfg.EmbedDimension,
	})
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}
	gateway = embedding.NewGateway(embedder, cfg.EmbedRateMax, log)
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(statsCmd)
}
