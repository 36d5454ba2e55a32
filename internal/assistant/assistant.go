// Package assistant answers questions over the ingested document graph.
//
// Two retrieval modes are supported: vector similarity over chunk embeddings
// and graph retrieval through generated read-only Cypher.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/vpinel/docugraph/internal/graphstore"
	"github.com/vpinel/docugraph/internal/metrics"
)

// Retrieval modes accepted by Ask.
const (
	ModeRAG      = "rag"
	ModeGraphRAG = "graphrag"
)

// defaultTopK is how many chunks vector retrieval feeds the model.
const defaultTopK = 5

// Embedder produces the query vector for similarity search.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher is the slice of the graph store the assistant reads from.
type Searcher interface {
	SimilaritySearch(ctx context.Context, vector []float32, topK int) ([]graphstore.ScoredChunk, error)
	RunQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// Generator synthesizes answers from retrieved context.
type Generator interface {
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Answer is the assistant's response to one question.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Mode    string   `json:"mode"`
}

// Assistant ties retrieval and generation together.
type Assistant struct {
	embedder Embedder
	searcher Searcher
	model    Generator
	metrics  *metrics.Collector
	topK     int
	log      *slog.Logger
}

// New creates an assistant. metrics may be nil.
func New(embedder Embedder, searcher Searcher, model Generator, collector *metrics.Collector, log *slog.Logger) *Assistant {
	if collector == nil {
		collector = metrics.NewCollector()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Assistant{
		embedder: embedder,
		searcher: searcher,
		model:    model,
		metrics:  collector,
		topK:     defaultTopK,
		log:      log,
	}
}

// Ask answers question using the given retrieval mode. An empty mode
// defaults to vector retrieval.
func (a *Assistant) Ask(ctx context.Context, question, mode string) (Answer, error) {
	switch mode {
	case "", ModeRAG:
		return a.askRAG(ctx, question)
	case ModeGraphRAG:
		return a.askGraphRAG(ctx, question)
	default:
		return Answer{}, fmt.Errorf("unknown mode %q", mode)
	}
}

const answerSystemPrompt = `You are a helpful assistant answering questions about a document collection.
Answer based ONLY on the provided context. If the context does not contain
enough information to answer the question, say so. Be concise.`

func (a *Assistant) askRAG(ctx context.Context, question string) (Answer, error) {
	vectors, err := a.embedder.EmbedBatch(ctx, []string{question})
	if err != nil {
		return Answer{}, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) != 1 {
		return Answer{}, fmt.Errorf("embed question: got %d vectors", len(vectors))
	}

	start := time.Now()
	hits, err := a.searcher.SimilaritySearch(ctx, vectors[0], a.topK)
	a.metrics.RecordTiming(metrics.OpGraphSearch, time.Since(start))
	if err != nil {
		return Answer{}, fmt.Errorf("similarity search: %w", err)
	}

	if len(hits) == 0 {
		return Answer{
			Answer: "I could not find any relevant information in the ingested documents.",
			Mode:   ModeRAG,
		}, nil
	}

	sources := make([]string, len(hits))
	var contextBuf strings.Builder
	for i, hit := range hits {
		sources[i] = hit.Chunk.Content
		fmt.Fprintf(&contextBuf, "[%d] %s\n\n", i+1, hit.Chunk.Content)
	}

	answer, err := a.synthesize(ctx, question, contextBuf.String())
	if err != nil {
		return Answer{}, err
	}
	return Answer{Answer: answer, Sources: sources, Mode: ModeRAG}, nil
}

const graphSchemaPrompt = `You translate questions into Cypher for this schema:
  (d:Document {id, title, preview})-[:CONTAINS]->(c:Chunk {id, index, content})
Write a single read-only Cypher query that retrieves data relevant to the
question. Return ONLY the Cypher query, no explanation and no code fences.
Limit results to at most 25 rows.`

var codeFence = regexp.MustCompile("(?s)```(?:cypher)?\\s*(.*?)```")

// mutationKeyword matches Cypher clauses that modify the graph. Generated
// queries containing any of them are rejected before execution.
var mutationKeyword = regexp.MustCompile(`(?i)\b(CREATE|MERGE|DELETE|DETACH|SET|REMOVE|DROP|LOAD\s+CSV|CALL\s*\{)`)

func (a *Assistant) askGraphRAG(ctx context.Context, question string) (Answer, error) {
	cypher, err := a.model.GenerateWithSystem(ctx, graphSchemaPrompt, question)
	if err != nil {
		return Answer{}, fmt.Errorf("generate cypher: %w", err)
	}
	cypher = sanitizeCypher(cypher)
	if cypher == "" {
		return Answer{}, fmt.Errorf("model returned no usable query")
	}
	if mutationKeyword.MatchString(cypher) {
		a.log.Warn("rejected generated cypher with mutation clause", "query", cypher)
		return Answer{}, fmt.Errorf("generated query is not read-only")
	}

	start := time.Now()
	rows, err := a.searcher.RunQuery(ctx, cypher, nil)
	a.metrics.RecordTiming(metrics.OpGraphSearch, time.Since(start))
	if err != nil {
		return Answer{}, fmt.Errorf("run generated query: %w", err)
	}

	if len(rows) == 0 {
		return Answer{
			Answer: "The graph query returned no results for this question.",
			Mode:   ModeGraphRAG,
		}, nil
	}

	var contextBuf strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&contextBuf, "%v\n", row)
	}

	answer, err := a.synthesize(ctx, question, contextBuf.String())
	if err != nil {
		return Answer{}, err
	}
	return Answer{Answer: answer, Sources: []string{}, Mode: ModeGraphRAG}, nil
}

func (a *Assistant) synthesize(ctx context.Context, question, retrieved string) (string, error) {
	userPrompt := fmt.Sprintf("Context:\n%s\nQuestion: %s\n\nAnswer:", retrieved, question)

	start := time.Now()
	answer, err := a.model.GenerateWithSystem(ctx, answerSystemPrompt, userPrompt)
	a.metrics.RecordTiming(metrics.OpLLMAnswer, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("synthesize answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// sanitizeCypher strips code fences and surrounding noise from a generated
// query.
func sanitizeCypher(s string) string {
	if m := codeFence.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	return strings.TrimSpace(s)
}
