// Package pipeline drives the plan → fetch → render flow behind every
// public operation and multiplexes its side effects into one ordered,
// typed event stream per request.
package pipeline

import (
	"context"
	"sort"

	"mosaic/internal/adapters/ai"
	"mosaic/internal/adapters/config"
	"mosaic/internal/catalog"
	"mosaic/internal/metrics"
	"mosaic/pkg/errors"
	"mosaic/pkg/logger"
)

// Pipeline owns the immutable tool catalog and the completion-API router.
// Everything else is per-request state.
type Pipeline struct {
	catalog *catalog.Catalog
	chat    ai.Completer
	cfg     config.AIConfig
	metrics *metrics.Metrics
	log     *logger.Logger
}

// New wires the pipeline. The catalog must already be built; it is never
// mutated afterwards.
func New(cat *catalog.Catalog, chat ai.Completer, cfg config.AIConfig, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		catalog: cat,
		chat:    chat,
		cfg:     cfg,
		metrics: m,
		log:     logger.Get().With("component", "pipeline"),
	}
}

// RefineRequest re-renders prior content against a supplied context.
type RefineRequest struct {
	Query          string
	CurrentContent string
	DataContext    Aggregate
}

// InteractRequest fetches drill-down detail for a clicked item.
type InteractRequest struct {
	ClickPrompt    string
	ClickedData    map[string]interface{}
	CurrentContent string
	DataContext    Aggregate
	ComponentType  string
}

// run spawns the per-request session and closes the stream after the
// terminal event.
func (p *Pipeline) run(ctx context.Context, operation string, fn func(*session)) <-chan Event {
	p.metrics.RequestsTotal.WithLabelValues(operation).Inc()

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		fn(newSession(ctx, out, p.metrics, p.log))
	}()
	return out
}

// Generate runs the full plan → fetch → render flow for a query.
func (p *Pipeline) Generate(ctx context.Context, query string) <-chan Event {
	return p.run(ctx, "generate", func(s *session) {
		s.thinking("Planning query...")

		plan, err := p.plan(s.ctx, query)
		if err != nil {
			s.fail(err)
			return
		}
		s.thinking("Intent: " + plan.Intent)

		data, err := p.runAgentLoop(s, agentSystemPrompt, buildAgentPrompt(query, plan.Intent, plan.Sources))
		if err != nil {
			s.fail(err)
			return
		}

		if len(data) == 0 {
			s.thinking("No tools called, using sample data")
			data = sampleDataFor(plan.Sources)
		}

		s.emit(KindData, data)
		s.thinking("Generating UI...")

		if err := p.render(s, buildUISystemPrompt(plan.Intent, plan.Approach), buildUIUserPrompt(query, data)); err != nil {
			s.fail(err)
			return
		}
		s.done()
	})
}

// GenerateLegacy runs plan → static dataset → render, skipping the agent loop.
func (p *Pipeline) GenerateLegacy(ctx context.Context, query string) <-chan Event {
	return p.run(ctx, "generate_legacy", func(s *session) {
		plan, err := p.plan(s.ctx, query)
		if err != nil {
			s.fail(err)
			return
		}

		data := sampleDataFor(plan.Sources)
		s.emit(KindData, data)

		if err := p.render(s, buildUISystemPrompt(plan.Intent, plan.Approach), buildUIUserPrompt(query, data)); err != nil {
			s.fail(err)
			return
		}
		s.done()
	})
}

// Refine re-renders using the supplied prior content and context. The data
// event re-emits the supplied context verbatim; nothing is re-fetched.
func (p *Pipeline) Refine(ctx context.Context, req RefineRequest) <-chan Event {
	return p.run(ctx, "refine", func(s *session) {
		data := req.DataContext
		if data == nil {
			data = make(Aggregate)
		}
		s.emit(KindData, data)

		if err := p.render(s, buildRefineSystemPrompt(req.CurrentContent), req.Query); err != nil {
			s.fail(err)
			return
		}
		s.done()
	})
}

// Interact fetches detail data for a clicked item, merges it into the
// supplied context under its namespaces, stores the clicked item under the
// reserved clicked_item key, and renders a detail view.
func (p *Pipeline) Interact(ctx context.Context, req InteractRequest) <-chan Event {
	return p.run(ctx, "interact", func(s *session) {
		s.thinking("Analyzing clicked item...")
		s.thinking("Item: " + clickedItemSummary(req.ClickedData))

		detail, err := p.runAgentLoop(s, interactSystemPrompt,
			buildInteractAgentPrompt(req.ClickPrompt, req.ClickedData, req.ComponentType))
		if err != nil {
			s.fail(err)
			return
		}

		combined := make(Aggregate)
		combined.Merge(req.DataContext)
		combined.Merge(detail)
		combined["clicked_item"] = req.ClickedData

		s.emit(KindData, combined)
		s.thinking("Generating detail view...")

		err = p.render(s,
			buildInteractSystemPrompt(req.ClickedData, req.ClickPrompt, req.ComponentType),
			buildInteractUserPrompt(req.ClickPrompt, combined))
		if err != nil {
			s.fail(err)
			return
		}
		s.done()
	})
}

// clickedItemSummary names the first few keys of the clicked payload for a
// status event.
func clickedItemSummary(clicked map[string]interface{}) string {
	keys := make([]string, 0, len(clicked))
	for k := range clicked {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > 3 {
		keys = keys[:3]
	}

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += k
	}
	return out
}

// FunctionCall records one invocation the sync query operation executed.
type FunctionCall struct {
	Function string                 `json:"function"`
	Args     map[string]interface{} `json:"args"`
}

// QueryResult is the synchronous agent-loop response.
type QueryResult struct {
	Prompt          string                 `json:"prompt"`
	Model           string                 `json:"model,omitempty"`
	Message         string                 `json:"message,omitempty"`
	FunctionsCalled []FunctionCall         `json:"functions_called,omitempty"`
	Data            map[string]interface{} `json:"data"`
}

// Query runs the agent loop synchronously against an explicit model and
// returns per-function results without the render stage. Failures of
// individual tools are recorded in the data map, not returned as errors.
func (p *Pipeline) Query(ctx context.Context, prompt, model string) (*QueryResult, error) {
	p.metrics.RequestsTotal.WithLabelValues("query").Inc()

	agentModel := model
	if agentModel == "" {
		agentModel = p.cfg.AgentModel
	}

	resp, err := p.chat.Chat(ctx, ai.ChatRequest{
		Model:      agentModel,
		ToolChoice: "auto",
		Tools:      p.catalog.Definitions(),
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: "You are a helpful assistant that retrieves user data from various sources. Use the available functions to fetch the requested data."},
			{Role: ai.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.Wrap(errors.ErrUpstream, "empty agent response")
	}

	result := &QueryResult{
		Prompt: prompt,
		Model:  agentModel,
		Data:   make(map[string]interface{}),
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		result.Message = msg.Content
		return result, nil
	}

	for _, tc := range msg.ToolCalls {
		name := tc.Function.Name
		args := parseArgs(tc)
		result.FunctionsCalled = append(result.FunctionsCalled, FunctionCall{Function: name, Args: args})

		handler, err := p.catalog.Resolve(name)
		if err != nil {
			p.metrics.ToolInvocationsTotal.WithLabelValues(name, "unknown").Inc()
			result.Data[name] = map[string]interface{}{"error": "Unknown function: " + name}
			continue
		}

		value, err := handler(ctx, args)
		if err != nil {
			p.metrics.ToolInvocationsTotal.WithLabelValues(name, "error").Inc()
			result.Data[name] = map[string]interface{}{"error": err.Error()}
			continue
		}

		p.metrics.ToolInvocationsTotal.WithLabelValues(name, "success").Inc()
		result.Data[name] = value
	}

	return result, nil
}
