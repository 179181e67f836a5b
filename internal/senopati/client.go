package senopati

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Static errors for Senopati client operations.
var (
	// ErrURLRequired is returned when the endpoint URL is empty.
	ErrURLRequired = errors.New("senopati: endpoint URL is required")
	// ErrPromptRequired is returned when the prompt is empty.
	ErrPromptRequired = errors.New("senopati: prompt is required")
	// ErrGenerateFailed is returned when the service reports an error in the body.
	ErrGenerateFailed = errors.New("senopati: generate failed")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("senopati: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("senopati: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("senopati: request failed")
)

// Client defines the interface for interacting with the Senopati API.
type Client interface {
	// Generate sends a prompt and returns the raw generated text.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// HTTPClient is the HTTP implementation of the Senopati Client interface.
type HTTPClient struct {
	url         string
	apiKey      string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets a bearer token. The public endpoint needs none.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new Senopati HTTP client for the given generate URL.
func NewClient(url string, opts ...ClientOption) (*HTTPClient, error) {
	if url == "" {
		return nil, ErrURLRequired
	}

	c := &HTTPClient{
		url:         url,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate sends a prompt and returns the generated text as-is. Zero
// options fall back to DefaultGenerateOptions.
func (c *HTTPClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if prompt == "" {
		return "", ErrPromptRequired
	}
	defaults := DefaultGenerateOptions()
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaults.MaxTokens
	}
	if opts.Temperature <= 0 {
		opts.Temperature = defaults.Temperature
	}

	bodyBytes, err := json.Marshal(generateRequest{
		Prompt:      prompt,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("senopati: marshal request: %w", err)
	}

	var resp generateResponse
	if err := c.doRequestWithRetry(ctx, bodyBytes, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrGenerateFailed, resp.Error)
	}
	return resp.Response, nil
}

// doRequestWithRetry performs the request with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, body []byte, result any) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("senopati: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, body, result)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("senopati: max retries exceeded: %w", lastErr)
}

func (c *HTTPClient) doRequest(ctx context.Context, body []byte, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("senopati: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("senopati: request failed: %w", err)
		}
		return &retryableError{err: fmt.Errorf("senopati: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("senopati: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("senopati: unmarshal response: %w", err)
	}
	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

var _ Client = (*HTTPClient)(nil)
