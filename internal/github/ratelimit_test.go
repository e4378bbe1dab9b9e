package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"testing"
	"time"
)

func TestRateLimitTracker_WaitsForReset(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tracker := newRateLimitTracker(0)
	tracker.now = func() time.Time { return now }
	var slept time.Duration
	tracker.sleep = func(_ context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	if err := tracker.wait(context.Background()); err != nil || slept != 0 {
		t.Fatalf("unknown state should not wait (slept %v, err %v)", slept, err)
	}

	header := http.Header{}
	header.Set("X-RateLimit-Remaining", "0")
	header.Set("X-RateLimit-Reset", strconv.FormatInt(now.Add(90*time.Second).Unix(), 10))
	tracker.update(header)

	if err := tracker.wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if slept != 90*time.Second {
		t.Errorf("slept %v, want 90s", slept)
	}

	slept = 0
	header.Set("X-RateLimit-Remaining", "12")
	tracker.update(header)
	if err := tracker.wait(context.Background()); err != nil || slept != 0 {
		t.Errorf("remaining budget should not wait (slept %v, err %v)", slept, err)
	}
}

func TestRateLimitTracker_IgnoresMalformedHeaders(t *testing.T) {
	tracker := newRateLimitTracker(0)
	header := http.Header{}
	header.Set("X-RateLimit-Remaining", "lots")
	header.Set("X-RateLimit-Reset", "1")
	tracker.update(header)
	if tracker.known {
		t.Error("malformed headers should be ignored")
	}
}

func TestRateLimitTracker_RetryAfter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tracker := newRateLimitTracker(0)
	tracker.now = func() time.Time { return now }

	tests := []struct {
		name     string
		headers  map[string]string
		expected time.Duration
	}{
		{"retry-after", map[string]string{"Retry-After": "30"}, 30 * time.Second},
		{"reset", map[string]string{"X-RateLimit-Reset": strconv.FormatInt(now.Add(time.Minute).Unix(), 10)}, time.Minute},
		{"reset in the past", map[string]string{"X-RateLimit-Reset": strconv.FormatInt(now.Add(-time.Minute).Unix(), 10)}, 0},
		{"nothing", nil, 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			header := http.Header{}
			for key, value := range test.headers {
				header.Set(key, value)
			}
			if got := tracker.retryAfter(header); got != test.expected {
				t.Errorf("retryAfter = %v, want %v", got, test.expected)
			}
		})
	}
}

func TestRateLimitTracker_PacerHonorsContext(t *testing.T) {
	tracker := newRateLimitTracker(0.001)
	if err := tracker.wait(context.Background()); err != nil {
		t.Fatalf("first wait should use the burst: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := tracker.wait(ctx); err == nil {
		t.Fatal("expected pacer to give up on a short deadline")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), true},
		{"unexpected eof", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), true},
		{"eof", io.EOF, true},
		{"remote error", &RemoteError{StatusCode: 502}, false},
		{"plain", errors.New("boom"), false},
		{"cancelled", context.Canceled, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := isTransient(test.err); got != test.expected {
				t.Errorf("isTransient(%v) = %v, want %v", test.err, got, test.expected)
			}
		})
	}
}
