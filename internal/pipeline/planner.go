package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"mosaic/internal/adapters/ai"
	"mosaic/pkg/errors"
)

// Plan is the planner's structured classification of a query.
type Plan struct {
	Intent   string   `json:"intent"`
	Approach string   `json:"approach"`
	Sources  []string `json:"sources"`
}

// plan issues the single-shot planning call. Malformed JSON or an upstream
// failure is not retried; the error propagates to the terminal error event.
func (p *Pipeline) plan(ctx context.Context, query string) (*Plan, error) {
	resp, err := p.chat.Chat(ctx, ai.ChatRequest{
		Model:     p.cfg.PlannerModel,
		MaxTokens: p.cfg.PlannerMaxTokens,
		Messages: []ai.Message{
			{Role: ai.RoleUser, Content: buildPlanningPrompt(query)},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.Wrap(errors.ErrUpstream, "empty planner response")
	}

	text := stripFences(resp.Choices[0].Message.Content)

	var plan Plan
	if err := json.Unmarshal([]byte(text), &plan); err != nil {
		return nil, errors.Wrap(errors.ErrPlannerParse, err.Error())
	}
	return &plan, nil
}

// stripFences removes surrounding markdown code-fence markers; models wrap
// JSON in ```json blocks regardless of instructions.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
