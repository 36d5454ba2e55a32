package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show graph contents",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rows, err := graph.RunQuery(ctx, `
		MATCH (d:Document)
		OPTIONAL MATCH (d)-[:CONTAINS]->(c:Chunk)
		RETURN d.title AS title,
		       count(c) AS chunks,
		       count(c.embedding) AS embedded
		ORDER BY d.title`, nil)
	if err != nil {
		return fmt.Errorf("query graph: %w", err)
	}

	if len(rows) == 0 {
		fmt.Println("The graph is empty.")
		return nil
	}

	var totalChunks, totalEmbedded int64
	for _, row := range rows {
		chunks, _ := row["chunks"].(int64)
		embedded, _ := row["embedded"].(int64)
		totalChunks += chunks
		totalEmbedded += embedded
		fmt.Printf("  %-40v %5d chunks, %5d embedded\n", row["title"], chunks, embedded)
	}
	fmt.Printf("\n%d documents, %d chunks, %d missing embeddings\n",
		len(rows), totalChunks, totalChunks-totalEmbedded)
	return nil
}
