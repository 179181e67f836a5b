package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Static errors for ASR client operations.
var (
	// ErrBaseURLRequired is returned when the service URL is not provided.
	ErrBaseURLRequired = errors.New("asr: base URL is required")
	// ErrAudioPathRequired is returned when no audio file is given.
	ErrAudioPathRequired = errors.New("asr: audio path is required")
	// ErrTranscribeFailed is returned when the service reports an error in the body.
	ErrTranscribeFailed = errors.New("asr: transcribe failed")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("asr: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("asr: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("asr: request failed")
)

// Client defines the interface for interacting with the ASR webservice.
type Client interface {
	// Transcribe uploads the audio file and returns the transcription.
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOptions) (Result, error)
}

// HTTPClient is the HTTP implementation of the ASR Client interface.
type HTTPClient struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithToken sets a bearer token for services behind an auth proxy.
func WithToken(token string) ClientOption {
	return func(hc *HTTPClient) {
		hc.token = token
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

// NewClient creates a new ASR HTTP client. baseURL is the service root,
// for example http://localhost:9000.
func NewClient(baseURL string, opts ...ClientOption) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	// Transcribing long recordings on CPU takes minutes.
	c := &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 30 * time.Minute},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Transcribe uploads the audio file and returns the transcription.
func (c *HTTPClient) Transcribe(ctx context.Context, audioPath string, opts TranscribeOptions) (Result, error) {
	if audioPath == "" {
		return Result{}, ErrAudioPathRequired
	}

	body, contentType, err := multipartBody(audioPath)
	if err != nil {
		return Result{}, err
	}

	var resp asrResponse
	if err := c.doRequestWithRetry(ctx, c.endpoint(opts), body, contentType, &resp); err != nil {
		return Result{}, err
	}
	if resp.Error != "" {
		return Result{}, fmt.Errorf("%w: %s", ErrTranscribeFailed, resp.Error)
	}

	return Result{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
		Segments: resp.Segments,
	}, nil
}

func (c *HTTPClient) endpoint(opts TranscribeOptions) string {
	task := opts.Task
	if task == "" {
		task = TaskTranscribe
	}
	q := url.Values{}
	q.Set("encode", "true")
	q.Set("task", string(task))
	q.Set("output", "json")
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	if opts.VADFilter {
		q.Set("vad_filter", "true")
	}
	return c.baseURL + "/asr?" + q.Encode()
}

// multipartBody reads the file once so every retry can resend it.
func multipartBody(audioPath string) ([]byte, string, error) {
	f, err := os.Open(audioPath) // #nosec G304 - path comes from the job's own temp storage
	if err != nil {
		return nil, "", fmt.Errorf("asr: open audio: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("audio_file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf("asr: create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("asr: copy audio: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("asr: close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, reqURL string, body []byte, contentType string, result any) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("asr: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, reqURL, body, contentType, result)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("asr: max retries exceeded: %w", lastErr)
}

func (c *HTTPClient) doRequest(ctx context.Context, reqURL string, body []byte, contentType string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("asr: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("asr: request failed: %w", err)
		}
		return &retryableError{err: fmt.Errorf("asr: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("asr: read response: %w", err)}
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
		return fmt.Errorf("asr: unmarshal response: %w", err)
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
