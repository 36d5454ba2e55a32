package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollectorTimings(t *testing.T) {
	c := NewCollector()

	c.RecordTiming(OpEmbedding, 100*time.Millisecond)
	c.RecordTiming(OpEmbedding, 300*time.Millisecond)

	snap := c.Snapshot()
	if assert.NotNil(t, snap.Embedding) {
		assert.Equal(t, int64(2), snap.Embedding.Count)
		assert.Equal(t, int64(400), snap.Embedding.TotalTimeMs)
		assert.Equal(t, float64(200), snap.Embedding.AvgTimeMs)
		assert.Equal(t, int64(100), snap.Embedding.MinTimeMs)
		assert.Equal(t, int64(300), snap.Embedding.MaxTimeMs)
	}

	// Untouched operations stay absent from the snapshot.
	assert.Nil(t, snap.LLMAnswer)
	assert.Nil(t, snap.GraphWrite)
}

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()

	c.RecordDocument(7)
	c.RecordDocument(3)
	c.RecordJobOutcome(true)
	c.RecordJobOutcome(true)
	c.RecordJobOutcome(false)

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap.DocumentsIngested)
	assert.Equal(t, int64(10), snap.ChunksStored)
	assert.Equal(t, int64(2), snap.JobsCompleted)
	assert.Equal(t, int64(1), snap.JobsFailed)
}

func TestCollectorConcurrentAccess(t *testing.T) {
	c := NewCollector()

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				c.RecordTiming(OpGraphWrite, time.Millisecond)
				c.Snapshot()
			}
		}()
	}
	for i := 0; i < 4; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out")
		}
	}

	assert.Equal(t, int64(400), c.Snapshot().GraphWrite.Count)
}
