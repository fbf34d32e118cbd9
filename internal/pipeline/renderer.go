package pipeline

import (
	"mosaic/internal/adapters/ai"
)

// render issues the streaming completion request and forwards every
// non-empty token fragment as a ui event as it arrives. Output is bounded
// by RenderMaxTokens; hitting the bound truncates silently.
func (p *Pipeline) render(s *session, system, user string) error {
	chunks, errCh := p.chat.ChatStream(s.ctx, ai.ChatRequest{
		Model:     p.cfg.RenderModel,
		MaxTokens: p.cfg.RenderMaxTokens,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: system},
			{Role: ai.RoleUser, Content: user},
		},
	})

	for chunk := range chunks {
		if chunk.Content == "" {
			continue
		}
		if !s.emit(KindUI, map[string]interface{}{"content": chunk.Content}) {
			break
		}
	}

	return <-errCh
}
