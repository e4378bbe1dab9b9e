package github

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"
)

// RetryPolicy bounds the retries of a single HTTP call. It wraps only one
// request at a time; callers that want to repeat a whole multi-request
// workflow must do so themselves.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// Backoff is the fixed pause between tries.
	Backoff time.Duration
}

// DefaultRetryPolicy is a few quick retries with a short fixed pause.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Backoff: 2 * time.Second}

func (policy RetryPolicy) attempts() int {
	if policy.MaxAttempts < 1 {
		return 1
	}
	return policy.MaxAttempts
}

// isTransient reports whether err is a network-level failure worth trying
// again: timeouts, resets, and connections dropped mid-exchange. HTTP error
// responses are never transient here.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}

// sleepContext pauses for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
