package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Publisher receives every successfully stored record mutation. Delivery is
// best-effort: implementations must not block and their failures never reach
// the tracker's callers.
type Publisher interface {
	Publish(jobID string, rec Record)
}

// Tracker is the single source of truth for job progress. All writes go
// through it; the pipeline never mutates job state directly.
type Tracker struct {
	store     Store
	publisher Publisher
	log       *slog.Logger

	// Serializes read-modify-write cycles. Each job has a single writer
	// (its pipeline goroutine), but status and progress updates may race
	// during phase changes.
	mu sync.Mutex
}

// NewTracker creates a tracker backed by store. publisher may be nil.
func NewTracker(store Store, publisher Publisher, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{store: store, publisher: publisher, log: log}
}

// Create initializes a job record with status "starting" and zero progress.
// Store failures are logged, never returned: progress tracking is a side
// channel that must not break ingestion.
func (t *Tracker) Create(ctx context.Context, jobID, filename string, totalPages int) {
	rec := Record{
		JobID:      jobID,
		Filename:   filename,
		Status:     StatusStarting,
		Message:    "Starting PDF extraction...",
		TotalPages: totalPages,
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.write(ctx, rec) {
		return
	}
	t.log.Info("job created", "job_id", jobID, "filename", filename, "total_pages", totalPages)
}

// UpdateProgress advances the unit counter for the current phase and
// recomputes the percentage for that phase's band. It is a no-op when the
// record is missing (expired) or already terminal.
func (t *Tracker) UpdateProgress(ctx context.Context, jobID string, current int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.read(ctx, jobID)
	if !ok || rec.Status.IsTerminal() {
		return
	}

	// Counters never move backwards while non-terminal.
	if current < rec.CurrentPage {
		current = rec.CurrentPage
	}
	rec.CurrentPage = current

	var percent int
	switch rec.Status {
	case StatusStarting, StatusExtracting:
		percent = extractionPercent(current, rec.TotalPages)
		rec.Message = fmt.Sprintf("Extracting page %d of %d", current, rec.TotalPages)
	default:
		percent = downstreamPercent(current, rec.TotalPages)
		rec.Message = fmt.Sprintf("Storing chunk %d of %d", current, rec.TotalPages)
	}
	if percent > rec.PercentComplete {
		rec.PercentComplete = percent
	}

	t.write(ctx, rec)
}

// StatusUpdate describes a phase transition. Percent, Current and Total are
// optional; Percent is clamped to [0,100] and recorded as given (each phase
// defines its own band), and Total re-bases the unit denominator, allowed
// once when the pipeline switches from counting pages to counting chunks.
type StatusUpdate struct {
	Status  Status
	Message string
	Percent *int
	Current *int
	Total   *int
}

// UpdateStatus transitions a job to a new phase. Transitions out of terminal
// states are rejected. The stored percentage never decreases, including
// across a denominator re-base.
func (t *Tracker) UpdateStatus(ctx context.Context, jobID string, upd StatusUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.read(ctx, jobID)
	if !ok {
		return
	}
	if !rec.Status.CanTransition(upd.Status) {
		t.log.Warn("rejected status transition", "job_id", jobID, "from", rec.Status, "to", upd.Status)
		return
	}

	rec.Status = upd.Status
	rec.Message = upd.Message
	if upd.Total != nil {
		rec.TotalPages = *upd.Total
	}
	if upd.Current != nil {
		rec.CurrentPage = *upd.Current
	}
	if upd.Percent != nil {
		if p := clampPercent(*upd.Percent); p > rec.PercentComplete {
			rec.PercentComplete = p
		}
	}

	t.write(ctx, rec)
}

// Complete sets a terminal state. For "completed" the percentage is forced
// to 100 and the counter to its total; for "failed" the percentage freezes
// at whatever was last recorded. Calling Complete on an already terminal job
// rewrites the same terminal record, so the operation is idempotent.
func (t *Tracker) Complete(ctx context.Context, jobID, message string, final Status) {
	if final != StatusCompleted && final != StatusFailed {
		t.log.Warn("invalid final status, using failed", "job_id", jobID, "status", final)
		final = StatusFailed
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// A missing record (expired mid-job) still gets a terminal record so a
	// late poller sees the outcome rather than a 404.
	rec, ok := t.read(ctx, jobID)
	if !ok {
		rec = Record{JobID: jobID}
	}
	if rec.Status.IsTerminal() && rec.Status != final {
		// First terminal state wins.
		return
	}

	rec.Status = final
	rec.Message = message
	if final == StatusCompleted {
		rec.PercentComplete = 100
		if rec.TotalPages > 0 {
			rec.CurrentPage = rec.TotalPages
		}
	}

	if t.write(ctx, rec) {
		t.log.Info("job finalized", "job_id", jobID, "status", final, "message", message)
	}
}

// Get returns the current record for jobID, or ErrNotFound if it is unknown
// or has expired.
func (t *Tracker) Get(ctx context.Context, jobID string) (Record, error) {
	data, err := t.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("read job %s: %w", jobID, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	return rec, nil
}

// read loads a record for mutation. Store errors and missing records both
// make the mutation a silent no-op.
func (t *Tracker) read(ctx context.Context, jobID string) (Record, bool) {
	data, err := t.store.Get(ctx, jobID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			t.log.Warn("job store read failed", "job_id", jobID, "error", err)
		}
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.log.Warn("stored job record is corrupt", "job_id", jobID, "error", err)
		return Record{}, false
	}
	return rec, true
}

// write stores the full record as one atomic key overwrite and notifies the
// publisher. Returns false when the store rejected the write.
func (t *Tracker) write(ctx context.Context, rec Record) bool {
	data, err := json.Marshal(rec)
	if err != nil {
		t.log.Warn("encode job record failed", "job_id", rec.JobID, "error", err)
		return false
	}
	if err := t.store.Set(ctx, rec.JobID, data); err != nil {
		t.log.Warn("job store write failed", "job_id", rec.JobID, "error", err)
		return false
	}
	if t.publisher != nil {
		t.publisher.Publish(rec.JobID, rec)
	}
	return true
}
