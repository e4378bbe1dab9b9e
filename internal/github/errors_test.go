package github

import (
	"fmt"
	"testing"
)

func TestRemoteError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *RemoteError
		expected string
	}{
		{
			name: "simple message",
			err: &RemoteError{
				Method:     "GET",
				URL:        "https://api.github.com/repos/o/r/releases/tags/x",
				StatusCode: 404,
				Message:    "Not Found",
			},
			expected: "github: GET https://api.github.com/repos/o/r/releases/tags/x: HTTP 404: Not Found",
		},
		{
			name: "validation error with code",
			err: &RemoteError{
				Method:     "PATCH",
				URL:        "u",
				StatusCode: 422,
				Message:    "Validation Failed",
				Errors:     []ValidationError{{Resource: "ReleaseAsset", Field: "name", Code: "already_exists"}},
			},
			expected: "github: PATCH u: HTTP 422: Validation Failed; ReleaseAsset.name: already_exists",
		},
		{
			name: "validation error with message",
			err: &RemoteError{
				Method:     "POST",
				URL:        "u",
				StatusCode: 422,
				Message:    "Validation Failed",
				Errors:     []ValidationError{{Resource: "ReleaseAsset", Field: "name", Message: "is invalid"}},
			},
			expected: "github: POST u: HTTP 422: Validation Failed; ReleaseAsset.name: is invalid",
		},
		{
			name:     "no message",
			err:      &RemoteError{Method: "DELETE", URL: "u", StatusCode: 500},
			expected: "github: DELETE u: HTTP 500",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.err.Error(); got != test.expected {
				t.Errorf("Error() = %q, want %q", got, test.expected)
			}
		})
	}
}

func TestErrorClassifiers(t *testing.T) {
	notFound := &RemoteError{StatusCode: 404}
	secondary := &RemoteError{StatusCode: 429}
	primary := &RemoteError{StatusCode: 403, Message: "API rate limit exceeded for installation"}
	forbidden := &RemoteError{StatusCode: 403, Message: "Resource not accessible by integration"}
	exists := &RemoteError{StatusCode: 422, Errors: []ValidationError{{Code: "already_exists"}}}
	invalid := &RemoteError{StatusCode: 422, Errors: []ValidationError{{Code: "invalid"}}}
	wrapped := fmt.Errorf("uploading: %w", notFound)

	tests := []struct {
		name     string
		check    func(error) bool
		err      error
		expected bool
	}{
		{"not found", IsNotFound, notFound, true},
		{"wrapped not found", IsNotFound, wrapped, true},
		{"not found on 429", IsNotFound, secondary, false},
		{"not found on plain error", IsNotFound, fmt.Errorf("boom"), false},
		{"rate limited 429", IsRateLimited, secondary, true},
		{"rate limited 403 message", IsRateLimited, primary, true},
		{"permission 403", IsRateLimited, forbidden, false},
		{"already exists", IsAlreadyExists, exists, true},
		{"other 422", IsAlreadyExists, invalid, false},
		{"already exists on nil", IsAlreadyExists, nil, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.check(test.err); got != test.expected {
				t.Errorf("got %v, want %v", got, test.expected)
			}
		})
	}
}

func TestNewRemoteError_ParsesBody(t *testing.T) {
	body := []byte(`{"message":"Validation Failed","documentation_url":"https://docs.github.com/x","errors":[{"resource":"ReleaseAsset","code":"already_exists","field":"name"}]}`)
	remote := newRemoteError("POST", "u", 422, body)
	if remote.Message != "Validation Failed" {
		t.Errorf("Message = %q", remote.Message)
	}
	if remote.DocumentationURL != "https://docs.github.com/x" {
		t.Errorf("DocumentationURL = %q", remote.DocumentationURL)
	}
	if !IsAlreadyExists(remote) {
		t.Error("expected already_exists")
	}
	if remote.Body != string(body) {
		t.Error("raw body not kept")
	}

	plain := newRemoteError("GET", "u", 502, []byte("  bad gateway\n"))
	if plain.Message != "bad gateway" {
		t.Errorf("plain Message = %q", plain.Message)
	}
}
