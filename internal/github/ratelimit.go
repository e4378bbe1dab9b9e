package github

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimitTracker tracks the host's rate limit state from response
// headers. Before a request is sent it checks whether the limit is
// exhausted and sleeps until the reset window if so. A token bucket
// paces requests on the client side as well, to stay clear of the
// secondary (burst) limits that bulk asset operations tend to hit.
type rateLimitTracker struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	known     bool // true after the first response with rate limit headers

	pacer *rate.Limiter // nil disables pacing
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func newRateLimitTracker(requestsPerSecond float64) *rateLimitTracker {
	tracker := &rateLimitTracker{
		now:   time.Now,
		sleep: sleepContext,
	}
	if requestsPerSecond > 0 {
		tracker.pacer = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return tracker
}

// update records rate limit state from HTTP response headers.
func (tracker *rateLimitTracker) update(header http.Header) {
	remainingStr := header.Get("X-RateLimit-Remaining")
	resetStr := header.Get("X-RateLimit-Reset")

	if remainingStr == "" || resetStr == "" {
		return
	}

	remaining, err := strconv.Atoi(remainingStr)
	if err != nil {
		return
	}

	resetUnix, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return
	}

	tracker.mu.Lock()
	defer tracker.mu.Unlock()

	tracker.remaining = remaining
	tracker.reset = time.Unix(resetUnix, 0)
	tracker.known = true
}

// wait blocks for the pacer, then until the rate limit window resets if
// the tracker knows the limit is exhausted. Returns an error only if ctx
// is cancelled while waiting.
func (tracker *rateLimitTracker) wait(ctx context.Context) error {
	if tracker.pacer != nil {
		if err := tracker.pacer.Wait(ctx); err != nil {
			return err
		}
	}

	tracker.mu.Lock()
	if !tracker.known || tracker.remaining > 0 {
		tracker.mu.Unlock()
		return nil
	}
	sleepDuration := tracker.reset.Sub(tracker.now())
	tracker.mu.Unlock()

	if sleepDuration <= 0 {
		return nil
	}
	return tracker.sleep(ctx, sleepDuration)
}

// retryAfter computes the backoff duration from a rate-limited response.
// Checks Retry-After first (secondary limits), then X-RateLimit-Reset.
// Returns zero if no backoff information is available.
func (tracker *rateLimitTracker) retryAfter(header http.Header) time.Duration {
	if retryStr := header.Get("Retry-After"); retryStr != "" {
		if seconds, err := strconv.Atoi(retryStr); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	if resetStr := header.Get("X-RateLimit-Reset"); resetStr != "" {
		if resetUnix, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			duration := time.Unix(resetUnix, 0).Sub(tracker.now())
			if duration > 0 {
				return duration
			}
		}
	}

	return 0
}
