package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vpinel/docugraph/internal/graphstore"
)

var (
	backfillScanLimit int
	backfillDryRun    bool
)

// Token-aware batch sizing for the embeddings API. Roughly four characters
// per token; the budget stays under the provider's per-request input limit.
const (
	charsPerToken   = 4
	batchTokenLimit = 7500
	batchCharLimit  = charsPerToken * batchTokenLimit
)

var backfillCmd = &cobra.Command{
	Use:   "backfill-embeddings",
	Short: "Embed chunks that are missing vectors",
	Long: `Find chunks stored without an embedding and backfill their vectors.

Chunks end up without embeddings when ingestion skipped a failed batch.
Batches are sized by estimated token count rather than a fixed chunk
count, so oversized chunks do not blow the provider's request limit.

Examples:
  docugraph backfill-embeddings
  docugraph backfill-embeddings --scan-limit 200 --dry-run`,
	Args: cobra.NoArgs,
	RunE: runBackfill,
}

func init() {
	backfillCmd.Flags().IntVar(&backfillScanLimit, "scan-limit", 500, "chunks fetched per scan")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "count missing embeddings without writing")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if backfillDryRun {
		chunks, err := graph.ChunksMissingEmbedding(ctx, backfillScanLimit)
		if err != nil {
			return fmt.Errorf("scan for missing embeddings: %w", err)
		}
		fmt.Printf("%d chunks are missing embeddings (scan limit %d)\n", len(chunks), backfillScanLimit)
		return nil
	}

	if err := initGateway(); err != nil {
		return err
	}

	var total int
	for {
		chunks, err := graph.ChunksMissingEmbedding(ctx, backfillScanLimit)
		if err != nil {
			return fmt.Errorf("scan for missing embeddings: %w", err)
		}
		if len(chunks) == 0 {
			break
		}

		done, err := backfillChunks(ctx, chunks)
		total += done
		if err != nil {
			return fmt.Errorf("after %d chunks: %w", total, err)
		}
		if done < len(chunks) {
			// Nothing embedded this round would mean an infinite loop.
			return fmt.Errorf("embedded %d of %d scanned chunks, stopping", done, len(chunks))
		}
	}

	fmt.Printf("Backfilled embeddings for %d chunks\n", total)
	return nil
}

// backfillChunks embeds and stores the given chunks in token-bounded
// batches. Returns how many chunks were written.
func backfillChunks(ctx context.Context, chunks []graphstore.Chunk) (int, error) {
	var written int
	for start := 0; start < len(chunks); {
		end := start + 1
		budget := len(chunks[start].Content)
		for end < len(chunks) && budget+len(chunks[end].Content) <= batchCharLimit {
			budget += len(chunks[end].Content)
			end++
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vectors, err := gateway.EmbedBatch(ctx, texts)
		if err != nil {
			return written, fmt.Errorf("embed batch of %d: %w", len(batch), err)
		}
		if len(vectors) != len(batch) {
			return written, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(batch), len(vectors))
		}

		for i := range batch {
			batch[i].Embedding = vectors[i]
		}
		if err := graph.SetChunkEmbeddings(ctx, batch); err != nil {
			return written, fmt.Errorf("store embeddings: %w", err)
		}

		written += len(batch)
		fmt.Printf("  embedded %d chunks (~%d tokens)\n", len(batch), budget/charsPerToken)
		start = end
	}
	return written, nil
}
