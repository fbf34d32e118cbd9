package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaic/pkg/errors"
)

func TestOpenAIChatToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-5-mini", body.Model)
		assert.Equal(t, "auto", body.ToolChoice)
		assert.False(t, body.Stream)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "gpt-5-mini",
			"choices": [{
				"index": 0,
				"message": {
					"role": "assistant",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "clash_get_player", "arguments": "{\"player_tag\":\"#ABC123\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}]
		}`))
	}))
	defer server.Close()

	p := NewOpenAIWithBaseURL("test-key", server.URL, 600)

	resp, err := p.Chat(context.Background(), ChatRequest{
		Model:      "gpt-5-mini",
		Messages:   []Message{{Role: RoleUser, Content: "stats please"}},
		Tools:      []ToolDefinition{{Type: "function", Function: FunctionDefinition{Name: "clash_get_player"}}},
		ToolChoice: "auto",
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)

	choice := resp.Choices[0]
	assert.Equal(t, FinishReasonToolCalls, choice.FinishReason)
	require.Len(t, choice.Message.ToolCalls, 1)
	assert.Equal(t, "clash_get_player", choice.Message.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"player_tag":"#ABC123"}`, choice.Message.ToolCalls[0].Function.Arguments)
}

func TestOpenAIChatStreamText(t *testing.T) {
	sseData := "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"},\"finish_reason\":null}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\" world\"},\"finish_reason\":null}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(sseData))
	}))
	defer server.Close()

	p := NewOpenAIWithBaseURL("test-key", server.URL, 600)

	chunks, errCh := p.ChatStream(context.Background(), ChatRequest{
		Model:    "gpt-5-mini",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})

	var text string
	var done bool
	for chunk := range chunks {
		text += chunk.Content
		if chunk.Done {
			done = true
		}
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, "Hello world", text)
	assert.True(t, done)
}

func TestOpenAIAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Invalid API key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	p := NewOpenAIWithBaseURL("bad-key", server.URL, 600)

	_, err := p.Chat(context.Background(), ChatRequest{
		Model:    "gpt-5-mini",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUpstream))
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestOpenAIMissingKey(t *testing.T) {
	p := NewOpenAIWithBaseURL("", "http://unused", 600)

	_, err := p.Chat(context.Background(), ChatRequest{Model: "gpt-5-mini"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestClaudeChatStripsModelPrefix(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))

		var body claudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-sonnet-4-5-20250929", body.Model)
		assert.Equal(t, "You are helpful", body.System)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_1",
			"model": "claude-sonnet-4-5-20250929",
			"content": [{"type": "text", "text": "hello"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 2}
		}`))
	}))
	defer server.Close()

	p := NewClaudeWithBaseURL("test-key", server.URL, 600)

	resp, err := p.Chat(context.Background(), ChatRequest{
		Model: "anthropic/claude-sonnet-4-5-20250929",
		Messages: []Message{
			{Role: RoleSystem, Content: "You are helpful"},
			{Role: RoleUser, Content: "hi"},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hello", resp.Choices[0].Message.Content)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
}

func TestClaudeChatStreamText(t *testing.T) {
	sseData := "event: message_start\ndata: {\"type\":\"message_start\"}\n\n" +
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"<div>\"}}\n\n" +
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"hi</div>\"}}\n\n" +
		"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(sseData))
	}))
	defer server.Close()

	p := NewClaudeWithBaseURL("test-key", server.URL, 600)

	chunks, errCh := p.ChatStream(context.Background(), ChatRequest{
		Model:    "anthropic/claude-sonnet-4-5-20250929",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})

	var text string
	for chunk := range chunks {
		text += chunk.Content
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, "<div>hi</div>", text)
}

func TestRouterForModel(t *testing.T) {
	r := NewRouterWithProviders(
		NewOpenAIWithBaseURL("k", "http://openai", 600),
		NewClaudeWithBaseURL("k", "http://claude", 600),
	)

	assert.Equal(t, "claude", r.ForModel("anthropic/claude-sonnet-4-5-20250929").Name())
	assert.Equal(t, "openai", r.ForModel("gpt-5-mini").Name())
	assert.Equal(t, "openai", r.ForModel("gpt-5").Name())
}
