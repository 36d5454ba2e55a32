// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// Operation names for the collector.
const (
	OpExtraction  = "extraction"
	OpEmbedding   = "embedding"
	OpGraphWrite  = "graph_write"
	OpGraphSearch = "graph_search"
	OpLLMAnswer   = "llm_answer"
)

// OperationMetrics holds aggregated timings for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`
}

// Snapshot represents the full server statistics at a point in time.
type Snapshot struct {
	UptimeSeconds     float64            `json:"uptime_seconds"`
	DocumentsIngested int64              `json:"documents_ingested"`
	ChunksStored      int64              `json:"chunks_stored"`
	JobsCompleted     int64              `json:"jobs_completed"`
	JobsFailed        int64              `json:"jobs_failed"`
	Extraction        *OperationSnapshot `json:"extraction,omitempty"`
	Embedding         *OperationSnapshot `json:"embedding,omitempty"`
	GraphWrite        *OperationSnapshot `json:"graph_write,omitempty"`
	GraphSearch       *OperationSnapshot `json:"graph_search,omitempty"`
	LLMAnswer         *OperationSnapshot `json:"llm_answer,omitempty"`
}

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics

	documents     int64
	chunks        int64
	jobsCompleted int64
	jobsFailed    int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordDocument counts one ingested document and its stored chunks.
func (c *Collector) RecordDocument(chunks int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.documents++
	c.chunks += int64(chunks)
}

// RecordJobOutcome counts a finished ingestion job.
func (c *Collector) RecordJobOutcome(succeeded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if succeeded {
		c.jobsCompleted++
	} else {
		c.jobsFailed++
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}
	return &OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds:     time.Since(c.startTime).Seconds(),
		DocumentsIngested: c.documents,
		ChunksStored:      c.chunks,
		JobsCompleted:     c.jobsCompleted,
		JobsFailed:        c.jobsFailed,
		Extraction:        snapshotOp(c.ops[OpExtraction]),
		Embedding:         snapshotOp(c.ops[OpEmbedding]),
		GraphWrite:        snapshotOp(c.ops[OpGraphWrite]),
		GraphSearch:       snapshotOp(c.ops[OpGraphSearch]),
		LLMAnswer:         snapshotOp(c.ops[OpLLMAnswer]),
	}
}
