package embedding

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a request budget over a sliding 60-second window. It is
// deliberately simple: a timestamp ring of recent requests, pruned on each
// call. Waiting is context-aware so one job's backoff never blocks another
// job's goroutine.
type Limiter struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	requests []time.Time
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewLimiter creates a limiter allowing max requests per 60s window.
func NewLimiter(max int) *Limiter {
	return &Limiter{
		max:    max,
		window: time.Minute,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait blocks until a request slot is available or ctx is cancelled, then
// records the request.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)
		if len(l.requests) < l.max {
			l.requests = append(l.requests, now)
			l.mu.Unlock()
			return nil
		}
		// Oldest request decides when the window frees a slot.
		wait := l.window - now.Sub(l.requests[0])
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// prune drops requests older than the window. Caller holds the lock.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.requests) && l.requests[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		l.requests = append(l.requests[:0], l.requests[i:]...)
	}
}
