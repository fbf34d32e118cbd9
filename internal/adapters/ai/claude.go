package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mosaic/pkg/errors"
)

const claudeAPIURL = "https://api.anthropic.com/v1/messages"

// Model ids carry an "anthropic/" prefix at the pipeline level so the router
// can pick this provider; the API itself wants the bare model name.
const claudeModelPrefix = "anthropic/"

// Ensure ClaudeProvider implements ChatProvider
var _ ChatProvider = (*ClaudeProvider)(nil)

// ClaudeProvider talks to the Anthropic messages API.
type ClaudeProvider struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	limiter *rate.Limiter
}

// NewClaude creates a provider against the public Anthropic endpoint.
func NewClaude(apiKey string, reqPerMinute int) *ClaudeProvider {
	return NewClaudeWithBaseURL(apiKey, claudeAPIURL, reqPerMinute)
}

// NewClaudeWithBaseURL creates a provider with a custom endpoint, used by tests.
func NewClaudeWithBaseURL(apiKey, baseURL string, reqPerMinute int) *ClaudeProvider {
	if reqPerMinute <= 0 {
		reqPerMinute = 300
	}
	return &ClaudeProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		timeout: 120 * time.Second,
		limiter: rate.NewLimiter(rate.Limit(float64(reqPerMinute)/60.0), reqPerMinute/10+1),
	}
}

// Name returns the provider identifier.
func (p *ClaudeProvider) Name() string { return "claude" }

type claudeRequest struct {
	Model       string          `json:"model"`
	Messages    []claudeMessage `json:"messages"`
	System      string          `json:"system,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature,omitempty"`
	Tools       []claudeTool    `json:"tools,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type claudeMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

type claudeTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type claudeContent struct {
	Type  string                 `json:"type"` // "text" or "tool_use"
	Text  string                 `json:"text,omitempty"`
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`
}

type claudeResponse struct {
	ID         string          `json:"id"`
	Model      string          `json:"model"`
	Content    []claudeContent `json:"content"`
	StopReason string          `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *ClaudeProvider) convert(req ChatRequest, stream bool) claudeRequest {
	out := claudeRequest{
		Model:       strings.TrimPrefix(req.Model, claudeModelPrefix),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = 4096
	}

	for _, msg := range req.Messages {
		if msg.Role == RoleSystem {
			out.System = msg.Content
			continue
		}
		out.Messages = append(out.Messages, claudeMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	for _, tool := range req.Tools {
		schema := tool.Function.Parameters
		if schema == nil {
			schema = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		out.Tools = append(out.Tools, claudeTool{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			InputSchema: schema,
		})
	}

	return out
}

func (p *ClaudeProvider) send(ctx context.Context, req ChatRequest, stream bool) (*http.Response, error) {
	if p.apiKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "claude API key not configured")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}

	body, err := json.Marshal(p.convert(req, stream))
	if err != nil {
		return nil, errors.Wrap(err, "marshal claude request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create HTTP request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	client := &http.Client{Timeout: p.timeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(errors.ErrUpstream, err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		var errResp struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, errors.Wrapf(errors.ErrUpstream, "claude API error (%d): %s - %s",
				resp.StatusCode, errResp.Error.Type, errResp.Error.Message)
		}
		return nil, errors.Wrapf(errors.ErrUpstream, "claude API error (%d): %s",
			resp.StatusCode, string(respBody))
	}

	return resp, nil
}

// Chat sends a non-streaming chat completion request.
func (p *ClaudeProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := p.send(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read claude response")
	}

	var claudeResp claudeResponse
	if err := json.Unmarshal(respBody, &claudeResp); err != nil {
		return nil, errors.Wrap(err, "unmarshal claude response")
	}

	msg := Message{Role: RoleAssistant}
	for _, block := range claudeResp.Content {
		switch block.Type {
		case "text":
			msg.Content += block.Text
		case "tool_use":
			args, _ := json.Marshal(block.Input)
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: FunctionCall{
					Name:      block.Name,
					Arguments: string(args),
				},
			})
		}
	}

	finishReason := FinishReasonStop
	switch claudeResp.StopReason {
	case "max_tokens":
		finishReason = FinishReasonLength
	case "tool_use":
		finishReason = FinishReasonToolCalls
	}

	return &ChatResponse{
		ID:    claudeResp.ID,
		Model: claudeResp.Model,
		Choices: []Choice{{
			Message:      msg,
			FinishReason: finishReason,
		}},
		Usage: Usage{
			PromptTokens:     claudeResp.Usage.InputTokens,
			CompletionTokens: claudeResp.Usage.OutputTokens,
			TotalTokens:      claudeResp.Usage.InputTokens + claudeResp.Usage.OutputTokens,
		},
	}, nil
}

// ChatStream sends a streaming chat completion request.
func (p *ClaudeProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatStreamChunk, <-chan error) {
	chunks := make(chan ChatStreamChunk, 64)
	errCh := make(chan error, 1)

	resp, err := p.send(ctx, req, true)
	if err != nil {
		errCh <- err
		close(errCh)
		close(chunks)
		return chunks, errCh
	}

	go func() {
		defer close(chunks)
		defer close(errCh)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")

			var event struct {
				Type  string `json:"type"`
				Delta struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"delta"`
			}
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
					select {
					case chunks <- ChatStreamChunk{Content: event.Delta.Text}:
					case <-ctx.Done():
						return
					}
				}
			case "message_stop":
				chunks <- ChatStreamChunk{Done: true}
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errCh <- errors.Wrap(errors.ErrUpstream, err.Error())
		}
	}()

	return chunks, errCh
}
