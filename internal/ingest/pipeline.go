// Package ingest runs the document ingestion pipeline: extract, chunk,
// embed, store. Each run drives a single job's progress through the tracker.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vpinel/docugraph/internal/chunker"
	"github.com/vpinel/docugraph/internal/embedding"
	"github.com/vpinel/docugraph/internal/extract"
	"github.com/vpinel/docugraph/internal/graphstore"
	"github.com/vpinel/docugraph/internal/jobs"
	"github.com/vpinel/docugraph/internal/metrics"
)

// DefaultBatchSize is how many chunks are embedded and stored per request.
const DefaultBatchSize = 50

// Graph is the slice of the graph store the pipeline writes to.
type Graph interface {
	EnsureSchema(ctx context.Context) error
	UpsertDocument(ctx context.Context, doc graphstore.Document) error
	UpsertChunks(ctx context.Context, docID string, chunks []graphstore.Chunk) error
}

// Embedder turns chunk texts into vectors. Rate limiting and retry live
// behind this interface; the pipeline only sees success or a final error
// per batch.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Options tune a pipeline. Zero values select the defaults.
type Options struct {
	ChunkConfig chunker.Config
	BatchSize   int
	Metrics     *metrics.Collector
	Logger      *slog.Logger
}

// Pipeline orchestrates one document's journey into the graph. It is safe
// for concurrent use; each Run is independent.
type Pipeline struct {
	tracker   *jobs.Tracker
	graph     Graph
	embedder  Embedder
	metrics   *metrics.Collector
	chunkCfg  chunker.Config
	batchSize int
	log       *slog.Logger

	// extraction is indirected so tests can feed synthetic documents
	// without building PDF fixtures.
	extractText func(ctx context.Context, path string, onPage func(page, total int)) (string, error)
	pageCount   func(path string) (int, error)
}

// New creates a pipeline writing to graph via embedder, reporting progress
// through tracker.
func New(tracker *jobs.Tracker, graph Graph, embedder Embedder, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.ChunkConfig == (chunker.Config{}) {
		opts.ChunkConfig = chunker.DefaultConfig()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{
		tracker:     tracker,
		graph:       graph,
		embedder:    embedder,
		metrics:     opts.Metrics,
		chunkCfg:    opts.ChunkConfig,
		batchSize:   opts.BatchSize,
		log:         opts.Logger,
		extractText: extract.Text,
		pageCount:   extract.PageCount,
	}
}

// Result summarizes a finished run.
type Result struct {
	DocumentID     string
	Pages          int
	Chunks         int
	StoredChunks   int
	SkippedChunks  int
	SkippedBatches int
}

// Run ingests the document at path under jobID. The job always ends in a
// terminal state: any failure, including a panic in a stage, finalizes the
// job as failed before the error is returned.
func (p *Pipeline) Run(ctx context.Context, jobID, filename, path string) (res Result, err error) {
	log := p.log.With("job_id", jobID, "filename", filename)

	// Terminal writes must survive cancellation, or a cancelled run would
	// leave its job stuck in a non-terminal state.
	trackCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ingestion panicked: %v", r)
			log.Error("ingestion panicked", "panic", r)
			p.tracker.Complete(trackCtx, jobID, "Internal error during processing", jobs.StatusFailed)
		}
		p.metrics.RecordJobOutcome(err == nil)
	}()

	fail := func(message string, cause error) (Result, error) {
		log.Error("ingestion failed", "error", cause, "message", message)
		p.tracker.Complete(trackCtx, jobID, message, jobs.StatusFailed)
		return res, cause
	}

	pages, err := p.pageCount(path)
	if err != nil {
		p.tracker.Create(ctx, jobID, filename, 0)
		return fail("Could not open the document", err)
	}
	res.Pages = pages
	p.tracker.Create(ctx, jobID, filename, pages)

	// Extraction drives the lower progress band, one update per page.
	p.tracker.UpdateStatus(ctx, jobID, jobs.StatusUpdate{
		Status:  jobs.StatusExtracting,
		Message: fmt.Sprintf("Extracting text from %d pages", pages),
	})
	start := time.Now()
	text, err := p.extractText(ctx, path, func(page, total int) {
		p.tracker.UpdateProgress(ctx, jobID, page)
	})
	p.metrics.RecordTiming(metrics.OpExtraction, time.Since(start))
	if err != nil {
		return fail("Text extraction failed", err)
	}

	text = extract.Clean(text)
	if text == "" {
		return fail("No text could be extracted from the document",
			fmt.Errorf("document %s contains no extractable text", filename))
	}

	chunks := chunker.Split(text, p.chunkCfg)
	res.Chunks = len(chunks)
	log.Info("document chunked", "pages", pages, "chunks", len(chunks))

	// From here progress counts chunks, not pages: the denominator is
	// re-based and the percentage continues in the upper band.
	zero := 0
	total := len(chunks)
	p.tracker.UpdateStatus(ctx, jobID, jobs.StatusUpdate{
		Status:  jobs.StatusChunking,
		Message: fmt.Sprintf("Split text into %d chunks", total),
		Percent: intPtr(55),
		Current: &zero,
		Total:   &total,
	})

	docID := graphstore.DocumentID(filename)
	res.DocumentID = docID

	p.tracker.UpdateStatus(ctx, jobID, jobs.StatusUpdate{
		Status:  jobs.StatusStoringGraph,
		Message: "Storing document in the graph",
	})
	start = time.Now()
	if err := p.graph.EnsureSchema(ctx); err != nil {
		return fail("Graph database is unavailable", err)
	}
	doc := graphstore.Document{
		ID:      docID,
		Title:   filename,
		Preview: graphstore.Preview(text),
	}
	if err := p.graph.UpsertDocument(ctx, doc); err != nil {
		return fail("Storing the document failed", err)
	}
	p.metrics.RecordTiming(metrics.OpGraphWrite, time.Since(start))

	p.tracker.UpdateStatus(ctx, jobID, jobs.StatusUpdate{
		Status:  jobs.StatusEmbedding,
		Message: fmt.Sprintf("Embedding %d chunks", total),
	})

	stored, skippedChunks, skippedBatches := p.storeChunks(ctx, jobID, docID, chunks)
	res.StoredChunks = stored
	res.SkippedChunks = skippedChunks
	res.SkippedBatches = skippedBatches

	if err := ctx.Err(); err != nil {
		return fail("Processing was cancelled", err)
	}

	p.metrics.RecordDocument(stored)

	message := fmt.Sprintf("Processing complete. Stored %d chunks.", stored)
	if skippedBatches > 0 {
		message = fmt.Sprintf("Processing complete. Stored %d chunks, skipped %d chunks in %d failed batches.",
			stored, skippedChunks, skippedBatches)
		log.Warn("some batches were skipped", "skipped_chunks", skippedChunks, "skipped_batches", skippedBatches)
	}
	p.tracker.Complete(trackCtx, jobID, message, jobs.StatusCompleted)
	log.Info("ingestion finished", "stored_chunks", stored, "skipped_chunks", skippedChunks)
	return res, nil
}

// storeChunks embeds and stores chunks in batches, advancing the job's
// chunk counter after each successful batch. A failed batch is logged and
// skipped; its chunks are counted but the progress counter does not move,
// so the percentage honestly reflects stored work. Cancellation stops
// between batches.
func (p *Pipeline) storeChunks(ctx context.Context, jobID, docID string, texts []string) (stored, skippedChunks, skippedBatches int) {
	for offset := 0; offset < len(texts); offset += p.batchSize {
		if ctx.Err() != nil {
			return stored, skippedChunks, skippedBatches
		}

		end := offset + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[offset:end]

		if err := p.storeBatch(ctx, docID, offset, batch); err != nil {
			skippedChunks += len(batch)
			skippedBatches++
			p.log.Error("batch failed, skipping",
				"job_id", jobID, "batch_start", offset, "batch_size", len(batch), "error", err)
			continue
		}

		stored += len(batch)
		p.tracker.UpdateProgress(ctx, jobID, stored)
	}
	return stored, skippedChunks, skippedBatches
}

// storeBatch embeds one batch and writes it to the graph. An embedding
// response with the wrong vector count is a batch failure: pairing texts
// with the wrong vectors would silently corrupt the index.
func (p *Pipeline) storeBatch(ctx context.Context, docID string, offset int, batch []string) error {
	start := time.Now()
	vectors, err := p.embedder.EmbedBatch(ctx, batch)
	p.metrics.RecordTiming(metrics.OpEmbedding, time.Since(start))
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(batch), len(vectors))
	}

	chunks := make([]graphstore.Chunk, len(batch))
	for i, content := range batch {
		chunks[i] = graphstore.Chunk{
			ID:        graphstore.ChunkID(docID, offset+i),
			Index:     offset + i,
			Content:   content,
			Embedding: vectors[i],
		}
	}

	start = time.Now()
	if err := p.graph.UpsertChunks(ctx, docID, chunks); err != nil {
		return fmt.Errorf("store batch: %w", err)
	}
	p.metrics.RecordTiming(metrics.OpGraphWrite, time.Since(start))
	return nil
}

func intPtr(v int) *int { return &v }

// ensure embedding.Gateway satisfies the pipeline's embedder contract.
var _ Embedder = (*embedding.Gateway)(nil)
