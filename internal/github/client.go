package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ruby/setup-msys2-gcc/internal/metrics"
	"go.uber.org/zap"
)

// apiVersion is the REST API version header. Pinning the version keeps
// behavior stable as the host evolves the API.
const apiVersion = "2022-11-28"

// maxResponseBody caps how much of a response body is read into memory.
const maxResponseBody = 8 << 20

// maxRateLimitWait is the longest the client will sleep on a rate-limit
// response before giving up and surfacing the error.
const maxRateLimitWait = 2 * time.Minute

// Config holds configuration for creating a Client.
type Config struct {
	// APIURL is the root URL for REST requests ("https://api.github.com").
	APIURL string

	// UploadURL is the root URL for asset uploads ("https://uploads.github.com").
	UploadURL string

	// DownloadURL is the root URL of public asset downloads ("https://github.com").
	DownloadURL string

	// Token is sent as a bearer token on every authenticated request.
	Token string

	// UserAgent identifies the publishing project.
	UserAgent string

	// HTTPClient is used for all HTTP requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Retry bounds retries of each individual call.
	Retry RetryPolicy

	// RequestTimeout bounds one API call attempt. UploadTimeout bounds one
	// upload attempt. Zero means no per-attempt timeout.
	RequestTimeout time.Duration
	UploadTimeout  time.Duration

	// RequestsPerSecond paces requests on the client side. Zero disables pacing.
	RequestsPerSecond float64

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Client is the transport layer for the release API: authenticated calls
// with fixed headers, bounded retry on transient network failures, rate
// limit handling, and typed errors for non-2xx responses.
type Client struct {
	apiURL      string
	uploadURL   string
	downloadURL string
	token       string
	userAgent   string

	httpClient  *http.Client
	probeClient *http.Client

	retry          RetryPolicy
	requestTimeout time.Duration
	uploadTimeout  time.Duration
	rateLimit      *rateLimitTracker

	logger  *zap.Logger
	metrics *metrics.Metrics

	// sleep is swapped out in tests.
	sleep func(context.Context, time.Duration) error
}

// NewClient creates a Client from the given configuration. Returns an error
// if a base URL is not HTTPS.
func NewClient(config Config) (*Client, error) {
	urls := map[string]*string{
		"API":      &config.APIURL,
		"upload":   &config.UploadURL,
		"download": &config.DownloadURL,
	}
	defaults := map[string]string{
		"API":      "https://api.github.com",
		"upload":   "https://uploads.github.com",
		"download": "https://github.com",
	}
	for name, value := range urls {
		if *value == "" {
			*value = defaults[name]
		}
		*value = strings.TrimRight(*value, "/")
		if !strings.HasPrefix(*value, "https://") {
			return nil, fmt.Errorf("github: %s URL must use HTTPS (got %q)", name, *value)
		}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	// The download probe must see the redirect itself, not its target.
	probeClient := *httpClient
	probeClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	retry := config.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy
	}

	return &Client{
		apiURL:         config.APIURL,
		uploadURL:      config.UploadURL,
		downloadURL:    config.DownloadURL,
		token:          config.Token,
		userAgent:      config.UserAgent,
		httpClient:     httpClient,
		probeClient:    &probeClient,
		retry:          retry,
		requestTimeout: config.RequestTimeout,
		uploadTimeout:  config.UploadTimeout,
		rateLimit:      newRateLimitTracker(config.RequestsPerSecond),
		logger:         logger,
		metrics:        config.Metrics,
		sleep:          sleepContext,
	}, nil
}

// request describes one logical call. body is reopened for every attempt
// so that a retried upload streams the file again from the start.
type request struct {
	method        string
	url           string
	body          func() (io.ReadCloser, error)
	contentType   string
	contentLength int64
	timeout       time.Duration

	// anonymous requests carry no Authorization header.
	anonymous bool

	// anyStatus returns non-2xx responses instead of a *RemoteError.
	anyStatus bool
}

type response struct {
	statusCode int
	header     http.Header
	body       []byte
}

// jsonBody encodes v once and serves it to every attempt.
func jsonBody(v any) (func() (io.ReadCloser, error), error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("github: encoding request body: %w", err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(encoded)), nil
	}, nil
}

// do executes req with retries. Transient network failures are retried up
// to the policy's attempt budget with a fixed pause. A rate-limit response
// that says how long to wait is waited out once. Every other failure is
// returned immediately.
func (client *Client) do(ctx context.Context, req *request) (*response, error) {
	op := req.method + " " + req.url
	failures := 0
	rateLimitWaited := false

	for {
		resp, err := client.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("github: %s: %w", op, ctxErr)
		}

		var remote *RemoteError
		if errors.As(err, &remote) {
			// The earlier attempt reached the host and removed the resource;
			// only its response was lost.
			if failures > 0 && req.method == http.MethodDelete && remote.StatusCode == http.StatusNotFound {
				client.logger.Info("resource already gone after retried delete",
					zap.String("url", req.url),
					zap.Int("attempt", failures+1),
				)
				return &response{statusCode: http.StatusNoContent}, nil
			}
			if !rateLimitWaited && IsRateLimited(remote) && remote.RetryAfter > 0 && remote.RetryAfter <= maxRateLimitWait {
				rateLimitWaited = true
				client.logger.Warn("rate limited, backing off",
					zap.String("method", req.method),
					zap.String("url", req.url),
					zap.Duration("duration", remote.RetryAfter),
				)
				client.metrics.ObserveRetry(req.method, "rate_limit")
				if err := client.sleep(ctx, remote.RetryAfter); err != nil {
					return nil, fmt.Errorf("github: %s: %w", op, err)
				}
				continue
			}
			return nil, err
		}

		if !isTransient(err) {
			return nil, err
		}

		failures++
		if failures >= client.retry.attempts() {
			return nil, &TransientNetworkError{Op: op, Attempts: failures, Err: err}
		}

		client.logger.Warn("transient network failure, retrying",
			zap.String("method", req.method),
			zap.String("url", req.url),
			zap.Int("attempt", failures),
			zap.Duration("backoff", client.retry.Backoff),
			zap.Error(err),
		)
		client.metrics.ObserveRetry(req.method, "transient")
		if err := client.sleep(ctx, client.retry.Backoff); err != nil {
			return nil, fmt.Errorf("github: %s: %w", op, err)
		}
	}
}

// attempt performs a single HTTP exchange and reads the whole response.
func (client *Client) attempt(ctx context.Context, req *request) (*response, error) {
	if err := client.rateLimit.wait(ctx); err != nil {
		return nil, err
	}

	if req.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.timeout)
		defer cancel()
	}

	var bodyReader io.ReadCloser
	if req.body != nil {
		var err error
		bodyReader, err = req.body()
		if err != nil {
			return nil, fmt.Errorf("github: opening request body: %w", err)
		}
	}

	httpRequest, err := http.NewRequestWithContext(ctx, req.method, req.url, bodyReader)
	if err != nil {
		if bodyReader != nil {
			bodyReader.Close()
		}
		return nil, fmt.Errorf("github: creating request: %w", err)
	}
	if bodyReader != nil && req.contentLength > 0 {
		httpRequest.ContentLength = req.contentLength
	}

	httpRequest.Header.Set("User-Agent", client.userAgent)
	httpRequest.Header.Set("Accept", "application/vnd.github+json")
	httpRequest.Header.Set("X-GitHub-Api-Version", apiVersion)
	if !req.anonymous && client.token != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+client.token)
	}
	if req.contentType != "" {
		httpRequest.Header.Set("Content-Type", req.contentType)
	}

	httpClient := client.httpClient
	if req.anonymous {
		httpClient = client.probeClient
	}

	client.logger.Debug("request",
		zap.String("method", req.method),
		zap.String("url", req.url),
	)

	start := time.Now()
	httpResponse, err := httpClient.Do(httpRequest)
	if err != nil {
		client.metrics.ObserveRequest(req.method, 0, time.Since(start))
		return nil, fmt.Errorf("github: %s %s: %w", req.method, req.url, err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResponse.Body, maxResponseBody))
	client.metrics.ObserveRequest(req.method, httpResponse.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("github: reading response body: %w", err)
	}

	client.rateLimit.update(httpResponse.Header)

	client.logger.Debug("response",
		zap.String("method", req.method),
		zap.String("url", req.url),
		zap.Int("status", httpResponse.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if !req.anyStatus && (httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300) {
		remote := newRemoteError(req.method, req.url, httpResponse.StatusCode, body)
		if IsRateLimited(remote) {
			remote.RetryAfter = client.rateLimit.retryAfter(httpResponse.Header)
		}
		return nil, remote
	}

	return &response{
		statusCode: httpResponse.StatusCode,
		header:     httpResponse.Header,
		body:       body,
	}, nil
}

// apiCall is a convenience wrapper for JSON API calls. requestBody may be
// nil; result may be nil when the response body is not needed.
func (client *Client) apiCall(ctx context.Context, method, path string, requestBody, result any) error {
	req := &request{
		method:  method,
		url:     client.apiURL + path,
		timeout: client.requestTimeout,
	}
	if requestBody != nil {
		body, err := jsonBody(requestBody)
		if err != nil {
			return err
		}
		req.body = body
		req.contentType = "application/json; charset=utf-8"
	}

	resp, err := client.do(ctx, req)
	if err != nil {
		return err
	}
	if result == nil || len(resp.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, result); err != nil {
		return fmt.Errorf("github: decoding %s %s response: %w", method, path, err)
	}
	return nil
}
