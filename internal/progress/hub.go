// Package progress pushes job records to subscribed observers. Delivery is
// best-effort: the hub mirrors tracker state for connected clients, and a
// client that misses events falls back to polling the tracker.
package progress

import (
	"log/slog"
	"sync"

	"github.com/vpinel/docugraph/internal/jobs"
)

// subscriberBuffer is the per-subscriber event queue depth. A subscriber
// that falls this far behind starts losing intermediate events, which is
// acceptable: only the latest record matters to a progress bar.
const subscriberBuffer = 16

// Subscription is one observer's view of a single job's updates.
type Subscription struct {
	// C delivers records in publish order. Closed on Unsubscribe.
	C chan jobs.Record

	jobID string
	hub   *Hub
}

// Unsubscribe removes the subscription and closes C. Safe to call more than
// once.
func (s *Subscription) Unsubscribe() {
	s.hub.unsubscribe(s)
}

// Hub fans job records out to per-job subscribers. It implements
// jobs.Publisher, so wiring it into the tracker mirrors every mutation.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
	log  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		subs: make(map[string]map[*Subscription]struct{}),
		log:  log,
	}
}

// Subscribe registers an observer for one job's updates.
func (h *Hub) Subscribe(jobID string) *Subscription {
	sub := &Subscription{
		C:     make(chan jobs.Record, subscriberBuffer),
		jobID: jobID,
		hub:   h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[*Subscription]struct{})
	}
	h.subs[jobID][sub] = struct{}{}

	h.log.Debug("progress subscriber added", "job_id", jobID, "subscribers", len(h.subs[jobID]))
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[sub.jobID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.jobID)
	}
	close(sub.C)
}

// Publish delivers rec to every subscriber of jobID, independently. A full
// subscriber queue drops the event for that subscriber only; the call never
// blocks and never returns an error to the tracker.
func (h *Hub) Publish(jobID string, rec jobs.Record) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[jobID] {
		select {
		case sub.C <- rec:
		default:
			h.log.Debug("progress subscriber lagging, dropping event",
				"job_id", jobID, "percent", rec.PercentComplete)
		}
	}
}

// SubscriberCount returns the number of observers for a job.
func (h *Hub) SubscriberCount(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[jobID])
}
