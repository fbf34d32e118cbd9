package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaic/internal/adapters/ai"
	"mosaic/internal/adapters/config"
	"mosaic/internal/catalog"
	"mosaic/internal/metrics"
	"mosaic/pkg/errors"
)

// scriptedChat replays canned chat responses in call order and streams a
// fixed fragment sequence.
type scriptedChat struct {
	responses []*ai.ChatResponse
	errs      []error
	calls     int
	requests  []ai.ChatRequest

	stream    []string
	streamErr error
}

func (s *scriptedChat) Chat(_ context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
	s.requests = append(s.requests, req)
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.responses[i], nil
}

func (s *scriptedChat) ChatStream(_ context.Context, req ai.ChatRequest) (<-chan ai.ChatStreamChunk, <-chan error) {
	s.requests = append(s.requests, req)
	chunks := make(chan ai.ChatStreamChunk, len(s.stream)+1)
	errCh := make(chan error, 1)
	for _, frag := range s.stream {
		chunks <- ai.ChatStreamChunk{Content: frag}
	}
	chunks <- ai.ChatStreamChunk{Done: true}
	close(chunks)
	errCh <- s.streamErr
	close(errCh)
	return chunks, errCh
}

type scriptedProvider struct {
	ops []catalog.Operation
}

func (p *scriptedProvider) Operations() []catalog.Operation { return p.ops }
func (p *scriptedProvider) Authenticated() bool             { return true }

func testCatalog() *catalog.Catalog {
	return catalog.Build(map[string]catalog.Provider{
		"spotify": &scriptedProvider{ops: []catalog.Operation{{
			Name:        "get_top_songs",
			Description: "Get the user's most played songs",
			Handler: func(_ context.Context, _ map[string]interface{}) (interface{}, error) {
				return map[string]interface{}{"top_songs": []interface{}{"Midnight City"}}, nil
			},
		}}},
		"clash": &scriptedProvider{ops: []catalog.Operation{{
			Name:        "get_player",
			Description: "Get a player profile by tag",
			Params:      []catalog.Param{{Name: "player_tag", Type: catalog.TypeString, Description: "Player tag", Required: true}},
			Handler: func(_ context.Context, args map[string]interface{}) (interface{}, error) {
				if tag, _ := args["player_tag"].(string); tag == "#ABC123" {
					return nil, errors.Wrap(errors.ErrUnavailable, "player API returned 503")
				}
				return map[string]interface{}{"player": map[string]interface{}{"trophies": 5213}}, nil
			},
		}}},
	})
}

func testPipeline(chat ai.Completer) *Pipeline {
	cfg := config.AIConfig{
		PlannerModel:     "anthropic/claude-sonnet-4-5-20250929",
		AgentModel:       "gpt-5-mini",
		RenderModel:      "anthropic/claude-sonnet-4-5-20250929",
		PlannerMaxTokens: 300,
		RenderMaxTokens:  4000,
	}
	return New(testCatalog(), chat, cfg, metrics.New())
}

func textResponse(content string) *ai.ChatResponse {
	return &ai.ChatResponse{Choices: []ai.Choice{{
		Message:      ai.Message{Role: ai.RoleAssistant, Content: content},
		FinishReason: ai.FinishReasonStop,
	}}}
}

func toolCallResponse(calls ...ai.ToolCall) *ai.ChatResponse {
	return &ai.ChatResponse{Choices: []ai.Choice{{
		Message:      ai.Message{Role: ai.RoleAssistant, ToolCalls: calls},
		FinishReason: ai.FinishReasonToolCalls,
	}}}
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func kinds(events []Event) []Kind {
	out := make([]Kind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func indexOf(events []Event, kind Kind) int {
	for i, ev := range events {
		if ev.Kind == kind {
			return i
		}
	}
	return -1
}

const fencedPlan = "```json\n{\"intent\": \"music overview\", \"approach\": \"card grid\", \"sources\": [\"music\"]}\n```"

func TestGenerateEventOrdering(t *testing.T) {
	chat := &scriptedChat{
		responses: []*ai.ChatResponse{
			textResponse(fencedPlan),
			toolCallResponse(ai.ToolCall{
				ID: "call_1", Type: "function",
				Function: ai.FunctionCall{Name: "spotify_get_top_songs", Arguments: "{}"},
			}),
		},
		stream: []string{"<div>", "dashboard", "</div>"},
	}

	events := collect(t, testPipeline(chat).Generate(context.Background(), "show my music"))

	require.NotEmpty(t, events)
	assert.Equal(t, KindDone, events[len(events)-1].Kind)

	// Exactly one terminal event.
	terminals := 0
	for _, ev := range events {
		if ev.Kind == KindDone || ev.Kind == KindError {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)

	// Every tool_call is answered before the next begins.
	callIdx := indexOf(events, KindToolCall)
	require.NotEqual(t, -1, callIdx)
	require.Less(t, callIdx+1, len(events))
	assert.Equal(t, KindToolResult, events[callIdx+1].Kind)

	// Exactly one data event, and it precedes every ui fragment.
	dataIdx := indexOf(events, KindData)
	uiIdx := indexOf(events, KindUI)
	require.NotEqual(t, -1, dataIdx)
	require.NotEqual(t, -1, uiIdx)
	assert.Less(t, dataIdx, uiIdx)

	data, ok := events[dataIdx].Payload.(Aggregate)
	require.True(t, ok)
	assert.Equal(t, []interface{}{"Midnight City"}, data["music"]["top_songs"])

	// The fenced planner output parsed into the intent status event.
	assert.Equal(t, map[string]interface{}{"message": "Intent: music overview"}, events[1].Payload)

	// Three non-empty fragments streamed in order.
	var fragments []string
	for _, ev := range events {
		if ev.Kind == KindUI {
			fragments = append(fragments, ev.Payload.(map[string]interface{})["content"].(string))
		}
	}
	assert.Equal(t, []string{"<div>", "dashboard", "</div>"}, fragments)
}

func TestGenerateEmptyLoopFallsBackToSampleData(t *testing.T) {
	chat := &scriptedChat{
		responses: []*ai.ChatResponse{
			textResponse(`{"intent": "music overview", "approach": "grid", "sources": ["music"]}`),
			textResponse("I don't need any tools for this."),
		},
		stream: []string{"<div/>"},
	}

	events := collect(t, testPipeline(chat).Generate(context.Background(), "show my music"))

	assert.Equal(t, -1, indexOf(events, KindToolCall))
	assert.Contains(t, kinds(events), KindDone)

	dataIdx := indexOf(events, KindData)
	require.NotEqual(t, -1, dataIdx)
	data := events[dataIdx].Payload.(Aggregate)
	require.Contains(t, data, "music")
	assert.Contains(t, data["music"], "top_songs")
	assert.NotContains(t, data, "stocks")
}

func TestGenerateToolFailureDoesNotAbort(t *testing.T) {
	chat := &scriptedChat{
		responses: []*ai.ChatResponse{
			textResponse(`{"intent": "gaming stats", "approach": "cards", "sources": ["gaming", "music"]}`),
			toolCallResponse(
				ai.ToolCall{ID: "call_1", Type: "function", Function: ai.FunctionCall{
					Name: "clash_get_player", Arguments: `{"player_tag": "#ABC123"}`,
				}},
				ai.ToolCall{ID: "call_2", Type: "function", Function: ai.FunctionCall{
					Name: "spotify_get_top_songs", Arguments: "{}",
				}},
			),
		},
		stream: []string{"<div/>"},
	}

	events := collect(t, testPipeline(chat).Generate(context.Background(), "gaming and music"))

	errorIdx := indexOf(events, KindToolError)
	require.NotEqual(t, -1, errorIdx)
	payload := events[errorIdx].Payload.(map[string]interface{})
	assert.Equal(t, "clash_get_player", payload["function"])

	// The second tool still ran and the stream still finished.
	resultIdx := indexOf(events, KindToolResult)
	require.NotEqual(t, -1, resultIdx)
	assert.Equal(t, "spotify_get_top_songs", events[resultIdx].Payload.(map[string]interface{})["function"])
	assert.Equal(t, KindDone, events[len(events)-1].Kind)

	data := events[indexOf(events, KindData)].Payload.(Aggregate)
	assert.NotContains(t, data, "gaming")
	assert.Contains(t, data, "music")
}

func TestGenerateUnknownToolEmitsToolError(t *testing.T) {
	chat := &scriptedChat{
		responses: []*ai.ChatResponse{
			textResponse(`{"intent": "weather", "approach": "card", "sources": []}`),
			toolCallResponse(ai.ToolCall{ID: "call_1", Type: "function", Function: ai.FunctionCall{
				Name: "weather_get_forecast", Arguments: "{}",
			}}),
		},
		stream: []string{"<div/>"},
	}

	events := collect(t, testPipeline(chat).Generate(context.Background(), "weather"))

	errorIdx := indexOf(events, KindToolError)
	require.NotEqual(t, -1, errorIdx)
	payload := events[errorIdx].Payload.(map[string]interface{})
	assert.Equal(t, "Unknown function: weather_get_forecast", payload["error"])
	assert.Equal(t, KindDone, events[len(events)-1].Kind)
}

func TestGeneratePlannerParseFailureIsTerminal(t *testing.T) {
	chat := &scriptedChat{
		responses: []*ai.ChatResponse{textResponse("sorry, I cannot answer that")},
	}

	events := collect(t, testPipeline(chat).Generate(context.Background(), "show my music"))

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, KindError, last.Kind)
	assert.NotContains(t, kinds(events), KindDone)
	assert.NotContains(t, kinds(events), KindUI)
}

func TestGenerateLegacySkipsAgentLoop(t *testing.T) {
	chat := &scriptedChat{
		responses: []*ai.ChatResponse{
			textResponse(`{"intent": "stocks", "approach": "table", "sources": ["stocks"]}`),
		},
		stream: []string{"<table/>"},
	}

	events := collect(t, testPipeline(chat).GenerateLegacy(context.Background(), "my portfolio"))

	assert.NotContains(t, kinds(events), KindThinking)
	assert.NotContains(t, kinds(events), KindToolCall)
	assert.Equal(t, []Kind{KindData, KindUI, KindDone}, kinds(events))

	data := events[0].Payload.(Aggregate)
	assert.Contains(t, data, "stocks")
	assert.NotContains(t, data, "music")
}

func TestRefineEmitsContextVerbatim(t *testing.T) {
	chat := &scriptedChat{stream: []string{"<div>refined</div>"}}
	dataContext := Aggregate{"music": {"top_genres": []interface{}{"pop"}}}

	events := collect(t, testPipeline(chat).Refine(context.Background(), RefineRequest{
		Query:          "make it darker",
		CurrentContent: "<div>old</div>",
		DataContext:    dataContext,
	}))

	require.Equal(t, []Kind{KindData, KindUI, KindDone}, kinds(events))
	assert.Equal(t, dataContext, events[0].Payload)

	// Refine never calls the non-streaming completion path.
	assert.Equal(t, 0, chat.calls)
	// The prior markup rides in the system message.
	require.Len(t, chat.requests, 1)
	assert.Contains(t, chat.requests[0].Messages[0].Content, "<div>old</div>")
}

func TestInteractMergesClickedItem(t *testing.T) {
	chat := &scriptedChat{
		responses: []*ai.ChatResponse{
			toolCallResponse(ai.ToolCall{ID: "call_1", Type: "function", Function: ai.FunctionCall{
				Name: "clash_get_player", Arguments: `{"player_tag": "#XYZ"}`,
			}}),
		},
		stream: []string{"<div>detail</div>"},
	}

	events := collect(t, testPipeline(chat).Interact(context.Background(), InteractRequest{
		ClickPrompt:   "show player details",
		ClickedData:   map[string]interface{}{"name": "Player", "trophies": 5213},
		DataContext:   Aggregate{"music": {"top_songs": []interface{}{"x"}}},
		ComponentType: "card",
	}))

	assert.Equal(t, KindDone, events[len(events)-1].Kind)

	data := events[indexOf(events, KindData)].Payload.(Aggregate)
	assert.Equal(t, []interface{}{"x"}, data["music"]["top_songs"])
	assert.Equal(t, map[string]interface{}{"trophies": 5213}, data["gaming"]["player"])
	assert.Equal(t, map[string]interface{}{"name": "Player", "trophies": 5213}, data["clicked_item"])
}

func TestQueryReturnsDataKeyedByFunction(t *testing.T) {
	chat := &scriptedChat{
		responses: []*ai.ChatResponse{
			toolCallResponse(
				ai.ToolCall{ID: "call_1", Type: "function", Function: ai.FunctionCall{
					Name: "spotify_get_top_songs", Arguments: "{}",
				}},
				ai.ToolCall{ID: "call_2", Type: "function", Function: ai.FunctionCall{
					Name: "clash_get_player", Arguments: `{"player_tag": "#ABC123"}`,
				}},
			),
		},
	}

	result, err := testPipeline(chat).Query(context.Background(), "music and gaming", "")
	require.NoError(t, err)

	assert.Equal(t, "music and gaming", result.Prompt)
	assert.Equal(t, "gpt-5-mini", result.Model)
	require.Len(t, result.FunctionsCalled, 2)
	assert.Equal(t, "spotify_get_top_songs", result.FunctionsCalled[0].Function)

	assert.Equal(t, map[string]interface{}{"top_songs": []interface{}{"Midnight City"}}, result.Data["spotify_get_top_songs"])
	failure := result.Data["clash_get_player"].(map[string]interface{})
	assert.Contains(t, failure["error"], "player API returned 503")
}

func TestQueryNoToolCallsReturnsMessage(t *testing.T) {
	chat := &scriptedChat{responses: []*ai.ChatResponse{textResponse("Nothing to fetch.")}}

	result, err := testPipeline(chat).Query(context.Background(), "hello", "gpt-4o")
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", result.Model)
	assert.Equal(t, "Nothing to fetch.", result.Message)
	assert.Empty(t, result.FunctionsCalled)
	assert.Empty(t, result.Data)
}
