// Package jobs tracks ingestion job progress in a shared key-value store.
//
// The tracker is a best-effort side channel: store failures are logged and
// swallowed so that ingestion never aborts because progress reporting is down.
package jobs

// Status represents the state of an ingestion job. The string values are the
// wire format returned to polling and websocket clients.
type Status string

const (
	// StatusStarting is the initial state set by Create.
	StatusStarting Status = "starting"

	// StatusExtracting covers page-by-page text extraction.
	StatusExtracting Status = "processing"

	// StatusChunking covers splitting extracted text into chunks.
	StatusChunking Status = "chunking"

	// StatusStoringGraph covers document upsert and vector index setup.
	StatusStoringGraph Status = "processing_neo4j"

	// StatusEmbedding covers the interleaved embed-batch/write-batch loop.
	StatusEmbedding Status = "embedding_neo4j"

	// StatusCompleted is terminal. Percent is forced to 100.
	StatusCompleted Status = "completed"

	// StatusFailed is terminal. Percent stays frozen at its last value.
	StatusFailed Status = "failed"

	// StatusError is terminal. Reserved for tracking-layer errors surfaced
	// to clients (for example unparseable stored state).
	StatusError Status = "error"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusError
}

// CanTransition reports whether a job in state s may move to next. Terminal
// states accept nothing; a repeated terminal write is handled separately by
// Complete, which is idempotent.
func (s Status) CanTransition(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	return next != ""
}
