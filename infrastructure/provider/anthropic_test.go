package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicProvider_ChatCompletion(t *testing.T) {
	var got messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"content": [{"type": "text", "text": "Paris"}, {"type": "text", "text": " is the capital."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider(AnthropicConfig{APIKey: "secret", BaseURL: srv.URL + "/"})
	assert.Equal(t, DefaultAnthropicModel, p.Model())

	resp, err := p.ChatCompletion(context.Background(), NewChatCompletionRequest([]Message{
		SystemMessage("Answer from the documents."),
		UserMessage("What is the capital of France?"),
	}).WithTemperature(0.2))
	require.NoError(t, err)

	assert.Equal(t, "Paris is the capital.", resp.Content())
	assert.Equal(t, "end_turn", resp.FinishReason())
	assert.Equal(t, 17, resp.Usage().TotalTokens())

	assert.Equal(t, DefaultAnthropicModel, got.Model)
	assert.Equal(t, anthropicMaxTokens, got.MaxTokens)
	assert.Equal(t, "Answer from the documents.", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, RoleUser, got.Messages[0].Role)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.2, *got.Temperature, 1e-9)
}

func TestAnthropicProvider_RetriesOverload(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider(AnthropicConfig{BaseURL: srv.URL, InitialDelay: time.Millisecond})
	resp, err := p.ChatCompletion(context.Background(), NewChatCompletionRequest([]Message{UserMessage("hi")}))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content())
	assert.Equal(t, int64(3), calls.Load())
}

func TestAnthropicProvider_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens too large"}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider(AnthropicConfig{BaseURL: srv.URL, InitialDelay: time.Millisecond})
	_, err := p.ChatCompletion(context.Background(), NewChatCompletionRequest([]Message{UserMessage("hi")}))
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusBadRequest, perr.StatusCode())
	assert.Contains(t, err.Error(), "max_tokens too large")
	assert.Equal(t, int64(1), calls.Load())
}

func TestAnthropicProvider_OnlySystemMessages(t *testing.T) {
	p := NewAnthropicProvider(AnthropicConfig{BaseURL: "http://127.0.0.1:0"})
	_, err := p.ChatCompletion(context.Background(), NewChatCompletionRequest([]Message{SystemMessage("x")}))
	assert.Error(t, err)
}

func TestBackoff_GivesUp(t *testing.T) {
	b := newBackoff(2, time.Millisecond, 1, 0)
	calls := 0
	err := b.do(context.Background(), func(error) bool { return true }, func() error {
		calls++
		return NewProviderError("op", http.StatusTooManyRequests, "slow down", nil)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, 3, calls)
}

func TestBackoff_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newBackoff(3, time.Millisecond, 2, 0).do(ctx, func(error) bool { return true }, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
