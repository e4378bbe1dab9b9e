package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RemoteError represents a non-2xx response from the release API. It is
// never retried by the transport, except for one wait on a rate-limit
// response that carries backoff information.
type RemoteError struct {
	Method     string
	URL        string
	StatusCode int

	// Message is the top-level error description from the host, or the
	// raw body when the body is not a structured error.
	Message          string
	DocumentationURL string
	Errors           []ValidationError

	// Body is the raw response body, kept for operator diagnostics.
	Body string

	// RetryAfter is the backoff the host asked for on a rate-limit
	// response. Zero otherwise.
	RetryAfter time.Duration
}

// ValidationError describes a specific validation failure on a resource
// field. Returned on 422 responses (e.g. an asset name that already exists).
type ValidationError struct {
	Resource string `json:"resource"`
	Code     string `json:"code"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

func (err *RemoteError) Error() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "github: %s %s: HTTP %d", err.Method, err.URL, err.StatusCode)
	if err.Message != "" {
		fmt.Fprintf(&builder, ": %s", err.Message)
	}
	for _, validationError := range err.Errors {
		if validationError.Message != "" {
			fmt.Fprintf(&builder, "; %s.%s: %s", validationError.Resource, validationError.Field, validationError.Message)
		} else {
			fmt.Fprintf(&builder, "; %s.%s: %s", validationError.Resource, validationError.Field, validationError.Code)
		}
	}
	return builder.String()
}

// TransientNetworkError is returned when a request kept failing at the
// network level (connection reset, timeout) until the retry budget ran out.
type TransientNetworkError struct {
	Op       string
	Attempts int
	Err      error
}

func (err *TransientNetworkError) Error() string {
	return fmt.Sprintf("github: %s: giving up after %d attempts: %v", err.Op, err.Attempts, err.Err)
}

func (err *TransientNetworkError) Unwrap() error { return err.Err }

// IsNotFound reports whether err is a 404 Not Found response.
func IsNotFound(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote) && remote.StatusCode == 404
}

// IsRateLimited reports whether err is a rate limit response. The host
// returns 403 when the primary rate limit is exceeded and 429 for
// secondary limits.
func IsRateLimited(err error) bool {
	var remote *RemoteError
	if !errors.As(err, &remote) {
		return false
	}
	return remote.StatusCode == 429 || (remote.StatusCode == 403 && isRateLimitMessage(remote.Message))
}

// IsAlreadyExists reports whether err is a 422 caused by an asset name
// collision.
func IsAlreadyExists(err error) bool {
	var remote *RemoteError
	if !errors.As(err, &remote) || remote.StatusCode != 422 {
		return false
	}
	for _, validationError := range remote.Errors {
		if validationError.Code == "already_exists" {
			return true
		}
	}
	return false
}

// isRateLimitMessage checks whether a 403 error message indicates a
// rate limit rather than a permission issue.
func isRateLimitMessage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "abuse detection")
}

// newRemoteError parses a structured error body when there is one.
func newRemoteError(method, url string, statusCode int, body []byte) *RemoteError {
	remote := &RemoteError{
		Method:     method,
		URL:        url,
		StatusCode: statusCode,
		Body:       string(body),
	}

	var wireError struct {
		Message          string            `json:"message"`
		DocumentationURL string            `json:"documentation_url"`
		Errors           []ValidationError `json:"errors"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Message != "" {
		remote.Message = wireError.Message
		remote.DocumentationURL = wireError.DocumentationURL
		remote.Errors = wireError.Errors
	} else {
		remote.Message = strings.TrimSpace(string(body))
	}
	return remote
}
