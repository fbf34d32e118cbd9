package ai

import (
	"context"
	"strings"

	"mosaic/internal/adapters/config"
	"mosaic/pkg/errors"
)

// Router dispatches completion requests to the provider that serves the
// requested model. Model ids prefixed with "anthropic/" go to Claude,
// everything else to OpenAI.
type Router struct {
	openai ChatProvider
	claude ChatProvider
}

// NewRouter builds a router from the AI configuration.
func NewRouter(cfg config.AIConfig) *Router {
	return &Router{
		openai: NewOpenAI(cfg.OpenAIKey, cfg.RequestsPerMinute),
		claude: NewClaude(cfg.ClaudeKey, cfg.RequestsPerMinute),
	}
}

// NewRouterWithProviders builds a router from explicit providers, used by tests.
func NewRouterWithProviders(openai, claude ChatProvider) *Router {
	return &Router{openai: openai, claude: claude}
}

// ForModel returns the provider serving the given model id.
func (r *Router) ForModel(model string) ChatProvider {
	if strings.HasPrefix(model, claudeModelPrefix) {
		return r.claude
	}
	return r.openai
}

// Chat dispatches a non-streaming request by model id.
func (r *Router) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	p := r.ForModel(req.Model)
	if p == nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "no provider for model %s", req.Model)
	}
	return p.Chat(ctx, req)
}

// ChatStream dispatches a streaming request by model id.
func (r *Router) ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatStreamChunk, <-chan error) {
	p := r.ForModel(req.Model)
	if p == nil {
		errCh := make(chan error, 1)
		errCh <- errors.Wrapf(errors.ErrUnavailable, "no provider for model %s", req.Model)
		close(errCh)
		chunks := make(chan ChatStreamChunk)
		close(chunks)
		return chunks, errCh
	}
	return p.ChatStream(ctx, req)
}

// Completer is the subset of the router the pipeline depends on.
type Completer interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatStreamChunk, <-chan error)
}

var _ Completer = (*Router)(nil)
