package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClientComplete(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"llama3.1","message":{"role":"assistant","content":"Xin chào!"},"done":true,"done_reason":"stop","prompt_eval_count":12,"eval_count":4}`)
	}))
	defer srv.Close()

	temp := 0.2
	c := NewOllamaClient(srv.URL+"/", "llama3.1", time.Second)
	resp, err := c.Complete(context.Background(), CompletionRequest{
		System:      "be brief",
		Messages:    []Message{{Role: RoleUser, Content: "chào"}},
		Temperature: &temp,
		MaxTokens:   64,
	})
	require.NoError(t, err)

	assert.Equal(t, "Xin chào!", resp.Content)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, Usage{InputTokens: 12, OutputTokens: 4}, resp.Usage)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleSystem, got.Messages[0].Role)
	assert.Equal(t, "chào", got.Messages[1].Content)
	assert.False(t, got.Stream)
	assert.Equal(t, 0.2, got.Options["temperature"])
	assert.Equal(t, float64(64), got.Options["num_predict"])
}

func TestOllamaClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaClient(srv.URL, "missing", time.Second).Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusNotFound, pe.Code)
	assert.Equal(t, "ollama", pe.Provider)
}

func TestOpenAIClientComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"tool\":\"list_houses\"}"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":30,"completion_tokens":8,"total_tokens":38}}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL+"/v1", "gpt-4o-mini", silentLog())
	resp, err := c.Complete(context.Background(), CompletionRequest{
		System: "system prompt",
		Messages: []Message{
			{Role: RoleUser, Content: "list houses"},
			{Role: RoleAssistant, Content: "ok"},
			{Role: RoleUser, Content: "again"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"tool":"list_houses"}`, resp.Content)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, Usage{InputTokens: 30, OutputTokens: 8}, resp.Usage)

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 4)
	assert.Equal(t, "gpt-4o-mini", body["model"])
}

func TestAnthropicClientComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5",
			"content":[{"type":"text","text":"There are "},{"type":"text","text":"3 rooms."}],
			"stop_reason":"end_turn","usage":{"input_tokens":40,"output_tokens":6}}`)
	}))
	defer srv.Close()

	c := NewAnthropicClient("sk-ant", srv.URL, "claude-sonnet-4-5", silentLog())
	resp, err := c.Complete(context.Background(), CompletionRequest{
		System:   "summarize",
		Messages: []Message{{Role: RoleUser, Content: "how many rooms?"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "There are 3 rooms.", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, Usage{InputTokens: 40, OutputTokens: 6}, resp.Usage)
	assert.Equal(t, float64(defaultAnthropicMaxTokens), body["max_tokens"])
	assert.NotNil(t, body["system"])
}

func TestGeminiHistory(t *testing.T) {
	h := geminiHistory([]Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	})
	require.Len(t, h, 2)
	assert.Equal(t, "user", h[0].Role)
	assert.Equal(t, "model", h[1].Role)
}
