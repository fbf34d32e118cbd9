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

const openaiAPIURL = "https://api.openai.com/v1/chat/completions"

// Ensure OpenAIProvider implements ChatProvider
var _ ChatProvider = (*OpenAIProvider)(nil)

// OpenAIProvider talks to the OpenAI chat completions API (or any
// OpenAI-compatible endpoint).
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	limiter *rate.Limiter
}

// NewOpenAI creates a provider against the public OpenAI endpoint.
func NewOpenAI(apiKey string, reqPerMinute int) *OpenAIProvider {
	return NewOpenAIWithBaseURL(apiKey, openaiAPIURL, reqPerMinute)
}

// NewOpenAIWithBaseURL creates a provider with a custom endpoint, used by tests.
func NewOpenAIWithBaseURL(apiKey, baseURL string, reqPerMinute int) *OpenAIProvider {
	if reqPerMinute <= 0 {
		reqPerMinute = 300
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		timeout: 120 * time.Second,
		limiter: rate.NewLimiter(rate.Limit(float64(reqPerMinute)/60.0), reqPerMinute/10+1),
	}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string { return "openai" }

type openAIRequest struct {
	Model       string           `json:"model"`
	Messages    []openAIMessage  `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	ToolChoice  string           `json:"tool_choice,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Stream      bool             `json:"stream,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	Index    int                `json:"index,omitempty"`
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role      string           `json:"role"`
			Content   string           `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *OpenAIProvider) convert(req ChatRequest, stream bool) openAIRequest {
	out := openAIRequest{
		Model:       req.Model,
		Tools:       req.Tools,
		ToolChoice:  req.ToolChoice,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}

	for _, msg := range req.Messages {
		m := openAIMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openAIToolCall{
				ID:   tc.ID,
				Type: tc.Type,
				Function: openAIFunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out.Messages = append(out.Messages, m)
	}

	return out
}

func (p *OpenAIProvider) send(ctx context.Context, req ChatRequest, stream bool) (*http.Response, error) {
	if p.apiKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "openai API key not configured")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}

	body, err := json.Marshal(p.convert(req, stream))
	if err != nil {
		return nil, errors.Wrap(err, "marshal openai request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create HTTP request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

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
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error"`
		}
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, errors.Wrapf(errors.ErrUpstream, "openai API error (%d): %s - %s",
				resp.StatusCode, errResp.Error.Type, errResp.Error.Message)
		}
		return nil, errors.Wrapf(errors.ErrUpstream, "openai API error (%d): %s",
			resp.StatusCode, string(respBody))
	}

	return resp, nil
}

// Chat sends a non-streaming chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := p.send(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read openai response")
	}

	var openAIResp openAIResponse
	if err := json.Unmarshal(respBody, &openAIResp); err != nil {
		return nil, errors.Wrap(err, "unmarshal openai response")
	}

	chatResp := &ChatResponse{
		ID:    openAIResp.ID,
		Model: openAIResp.Model,
		Usage: Usage{
			PromptTokens:     openAIResp.Usage.PromptTokens,
			CompletionTokens: openAIResp.Usage.CompletionTokens,
			TotalTokens:      openAIResp.Usage.TotalTokens,
		},
	}

	for _, choice := range openAIResp.Choices {
		msg := Message{
			Role:    MessageRole(choice.Message.Role),
			Content: choice.Message.Content,
		}

		for _, tc := range choice.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:   tc.ID,
				Type: tc.Type,
				Function: FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}

		finishReason := FinishReasonStop
		switch choice.FinishReason {
		case "length":
			finishReason = FinishReasonLength
		case "tool_calls", "function_call":
			finishReason = FinishReasonToolCalls
		}

		chatResp.Choices = append(chatResp.Choices, Choice{
			Index:        choice.Index,
			Message:      msg,
			FinishReason: finishReason,
		})
	}

	return chatResp, nil
}

// ChatStream sends a streaming chat completion request. Token fragments are
// delivered on the chunk channel; a transport or API error before the stream
// opens arrives on the error channel.
func (p *OpenAIProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatStreamChunk, <-chan error) {
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
			if data == "[DONE]" {
				chunks <- ChatStreamChunk{Done: true}
				return
			}

			var chunk struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
					FinishReason string `json:"finish_reason"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}

			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					select {
					case chunks <- ChatStreamChunk{Content: choice.Delta.Content}:
					case <-ctx.Done():
						return
					}
				}
				if choice.FinishReason == "stop" || choice.FinishReason == "length" {
					chunks <- ChatStreamChunk{Done: true}
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			errCh <- errors.Wrap(errors.ErrUpstream, err.Error())
		}
	}()

	return chunks, errCh
}
