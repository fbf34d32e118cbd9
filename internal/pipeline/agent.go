package pipeline

import (
	"context"
	"encoding/json"

	"mosaic/internal/adapters/ai"
	"mosaic/pkg/errors"
)

// fetchToolCalls issues the single function-calling completion request and
// returns the tool invocations the model asked for, in order.
func (p *Pipeline) fetchToolCalls(ctx context.Context, system, user string) (*ai.ChatResponse, error) {
	resp, err := p.chat.Chat(ctx, ai.ChatRequest{
		Model:      p.cfg.AgentModel,
		ToolChoice: "auto",
		Tools:      p.catalog.Definitions(),
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: system},
			{Role: ai.RoleUser, Content: user},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.Wrap(errors.ErrUpstream, "empty agent response")
	}
	return resp, nil
}

// parseArgs decodes the model-supplied JSON arguments. Types are not
// re-validated against the tool schema; operations handle their own
// argument checking.
func parseArgs(tc ai.ToolCall) map[string]interface{} {
	if tc.Function.Arguments == "" {
		return nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		return nil
	}
	return args
}

// runAgentLoop executes the requested tool invocations sequentially,
// emitting tool_call and exactly one of tool_result/tool_error per
// invocation. A failing or unknown tool never aborts the loop. The
// returned aggregate is empty when the model requested no invocations.
func (p *Pipeline) runAgentLoop(s *session, system, user string) (Aggregate, error) {
	resp, err := p.fetchToolCalls(s.ctx, system, user)
	if err != nil {
		return nil, err
	}

	data := make(Aggregate)
	for _, tc := range resp.Choices[0].Message.ToolCalls {
		name := tc.Function.Name
		args := parseArgs(tc)

		s.emit(KindToolCall, map[string]interface{}{"function": name, "args": args})

		handler, err := p.catalog.Resolve(name)
		if err != nil {
			s.log.Warnf("unknown tool requested: %s", name)
			p.metrics.ToolInvocationsTotal.WithLabelValues(name, "unknown").Inc()
			s.emit(KindToolError, map[string]interface{}{"function": name, "error": "Unknown function: " + name})
			continue
		}

		result, err := handler(s.ctx, args)
		if err != nil {
			s.log.Errorf("tool %s failed: %v", name, err)
			p.metrics.ToolInvocationsTotal.WithLabelValues(name, "error").Inc()
			s.emit(KindToolError, map[string]interface{}{"function": name, "error": err.Error()})
			continue
		}

		p.metrics.ToolInvocationsTotal.WithLabelValues(name, "success").Inc()
		s.emit(KindToolResult, map[string]interface{}{"function": name, "success": true})
		data.Add(name, result)
	}

	return data, nil
}
