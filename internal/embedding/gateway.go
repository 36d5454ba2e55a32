package embedding

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// maxRateLimitWait caps the provider-requested backoff.
	maxRateLimitWait = 5 * time.Minute

	// defaultRateLimitWait applies when the provider gives no wait hint.
	defaultRateLimitWait = time.Minute

	// maxRateLimitRetries bounds how often a single batch is retried after
	// rate-limit responses before it is reported as failed.
	maxRateLimitRetries = 5
)

var waitHint = regexp.MustCompile(`[Ww]ait (\d+) seconds`)

// Gateway wraps an Embedder with a sliding-window rate limit and retry
// handling for provider rate-limit responses. Rate-limited batches are
// retried after the provider-specified (capped) wait; the batch has not been
// consumed, so retrying rather than skipping is correct. Every other error
// is returned to the caller, which decides whether to skip the batch.
type Gateway struct {
	embedder Embedder
	limiter  *Limiter
	log      *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewGateway creates a gateway allowing ratePerMinute embedding requests in
// any sliding 60-second window.
func NewGateway(embedder Embedder, ratePerMinute int, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 10
	}
	return &Gateway{
		embedder: embedder,
		limiter:  NewLimiter(ratePerMinute),
		log:      log,
		sleep:    sleepCtx,
	}
}

// EmbedBatch embeds texts, waiting for rate-limit slots and retrying the
// same batch on provider rate-limit responses.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRateLimitRetries; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, err := g.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if !isRateLimit(err) {
			return nil, err
		}

		lastErr = err
		wait := parseWaitHint(err)
		g.log.Warn("embedding provider rate limited, retrying batch",
			"attempt", attempt+1, "wait", wait, "batch_size", len(texts))
		if err := g.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// Dimension returns the wrapped embedder's dimension.
func (g *Gateway) Dimension() int {
	return g.embedder.Dimension()
}

// Model returns the wrapped embedder's model name.
func (g *Gateway) Model() string {
	return g.embedder.Model()
}

// isRateLimit detects provider rate-limit responses. The provider error
// surfaces as text, so this matches the status code and common phrasing.
func isRateLimit(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests")
}

// parseWaitHint extracts "Please wait N seconds" from a provider error,
// capped at maxRateLimitWait, defaulting to defaultRateLimitWait.
func parseWaitHint(err error) time.Duration {
	m := waitHint.FindStringSubmatch(err.Error())
	if m == nil {
		return defaultRateLimitWait
	}
	secs, convErr := strconv.Atoi(m[1])
	if convErr != nil || secs <= 0 {
		return defaultRateLimitWait
	}
	wait := time.Duration(secs) * time.Second
	if wait > maxRateLimitWait {
		wait = maxRateLimitWait
	}
	return wait
}
