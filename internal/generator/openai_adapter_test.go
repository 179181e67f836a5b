package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected Authorization %q", r.Header.Get("Authorization"))
		}

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("expected one user message, got %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func completionJSON(content, refusal, finish string) string {
	return fmt.Sprintf(`{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "gpt-4o-mini",
		"choices": [{
			"index": 0,
			"finish_reason": %q,
			"logprobs": null,
			"message": {"role": "assistant", "content": %q, "refusal": %q}
		}]
	}`, finish, content, refusal)
}

func newTestOpenAIAdapter(t *testing.T, url string) *OpenAIAdapter {
	t.Helper()
	adapter, err := NewOpenAIAdapter("test-key", url, "", option.WithMaxRetries(0))
	require.NoError(t, err)
	return adapter
}

func TestOpenAIAdapter_Generate(t *testing.T) {
	server := chatServer(t, http.StatusOK, completionJSON(" One sentence. ", "", "stop"))
	defer server.Close()

	resp, err := newTestOpenAIAdapter(t, server.URL).Generate(context.Background(), "summarize")
	require.NoError(t, err)
	assert.Equal(t, KindText, resp.Kind)
	assert.Equal(t, "One sentence.", resp.Text())
	assert.Equal(t, "stop", resp.Reason)
}

func TestOpenAIAdapter_Refusal(t *testing.T) {
	server := chatServer(t, http.StatusOK, completionJSON("", "I can't help with that.", "stop"))
	defer server.Close()

	resp, err := newTestOpenAIAdapter(t, server.URL).Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, KindBlocked, resp.Kind)
	assert.Empty(t, resp.Text())
}

func TestOpenAIAdapter_ContentFilter(t *testing.T) {
	server := chatServer(t, http.StatusOK, completionJSON("", "", "content_filter"))
	defer server.Close()

	resp, err := newTestOpenAIAdapter(t, server.URL).Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, KindBlocked, resp.Kind)
}

func TestOpenAIAdapter_EmptyContent(t *testing.T) {
	server := chatServer(t, http.StatusOK, completionJSON("", "", "length"))
	defer server.Close()

	resp, err := newTestOpenAIAdapter(t, server.URL).Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, KindEmpty, resp.Kind)
	assert.Equal(t, "length", resp.Reason)
}

func TestOpenAIAdapter_HTTPError(t *testing.T) {
	server := chatServer(t, http.StatusBadRequest, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	defer server.Close()

	_, err := newTestOpenAIAdapter(t, server.URL).Generate(context.Background(), "p")
	require.Error(t, err)
}

func TestNewOpenAIAdapter_RequiresKey(t *testing.T) {
	_, err := NewOpenAIAdapter("", "", "")
	assert.ErrorIs(t, err, ErrAPIKeyRequired)
}
