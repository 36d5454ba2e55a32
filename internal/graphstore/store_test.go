// Package graphstore_test contains integration tests against a real Neo4j
// instance, plus unit tests for the pure helpers.
package graphstore_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vpinel/docugraph/internal/graphstore"
)

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getTestConfig() graphstore.Config {
	return graphstore.Config{
		URI:                getEnv("NEO4J_URI", "bolt://localhost:7687"),
		User:               getEnv("NEO4J_USER", "neo4j"),
		Password:           getEnv("NEO4J_PASSWORD", "password"),
		Database:           getEnv("NEO4J_DATABASE", ""),
		EmbeddingDimension: 4,
	}
}

func newTestStore(t *testing.T, ctx context.Context) *graphstore.Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store, err := graphstore.New(ctx, getTestConfig(), logger)
	require.NoError(t, err, "should connect to Neo4j")
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func TestDocumentID(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"report.pdf", "report"},
		{"nested/dir/report.pdf", "report"},
		{"notes.txt", "notes"},
		{"noext", "noext"},
	}
	for _, tt := range tests {
		if got := graphstore.DocumentID(tt.filename); got != tt.want {
			t.Errorf("DocumentID(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestChunkID(t *testing.T) {
	if got := graphstore.ChunkID("report", 3); got != "report_c3" {
		t.Errorf("ChunkID() = %q, want report_c3", got)
	}
}

func TestPreview(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'a'
	}
	if got := graphstore.Preview(string(long)); len(got) != 500 {
		t.Errorf("Preview() length = %d, want 500", len(got))
	}
	if got := graphstore.Preview("short"); got != "short" {
		t.Errorf("Preview() = %q, want unchanged", got)
	}
}

func TestUpsertIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := newTestStore(t, ctx)
	require.NoError(t, store.EnsureSchema(ctx))

	doc := graphstore.Document{ID: "it_doc", Title: "it_doc.pdf", Preview: "hello"}
	require.NoError(t, store.UpsertDocument(ctx, doc))

	chunks := []graphstore.Chunk{
		{ID: graphstore.ChunkID(doc.ID, 0), Index: 0, Content: "first", Embedding: []float32{1, 0, 0, 0}},
		{ID: graphstore.ChunkID(doc.ID, 1), Index: 1, Content: "second", Embedding: []float32{0, 1, 0, 0}},
	}
	require.NoError(t, store.UpsertChunks(ctx, doc.ID, chunks))

	count, err := store.ChunkCount(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Second ingestion of the same chunk ids overwrites rather than
	// duplicating.
	chunks[0].Content = "first, revised"
	require.NoError(t, store.UpsertDocument(ctx, doc))
	require.NoError(t, store.UpsertChunks(ctx, doc.ID, chunks))

	count, err = store.ChunkCount(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "re-ingestion must not duplicate chunks")
}

func TestSimilaritySearch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := newTestStore(t, ctx)
	require.NoError(t, store.EnsureSchema(ctx))

	doc := graphstore.Document{ID: "it_search_doc", Title: "search.pdf", Preview: "p"}
	require.NoError(t, store.UpsertDocument(ctx, doc))
	require.NoError(t, store.UpsertChunks(ctx, doc.ID, []graphstore.Chunk{
		{ID: graphstore.ChunkID(doc.ID, 0), Index: 0, Content: "about cats", Embedding: []float32{1, 0, 0, 0}},
		{ID: graphstore.ChunkID(doc.ID, 1), Index: 1, Content: "about dogs", Embedding: []float32{0, 1, 0, 0}},
	}))

	hits, err := store.SimilaritySearch(ctx, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "about cats", hits[0].Chunk.Content)
}
