package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaic/internal/adapters/ai"
	"mosaic/internal/adapters/config"
	"mosaic/internal/api/health"
	"mosaic/internal/catalog"
	"mosaic/internal/metrics"
	"mosaic/internal/pipeline"
	"mosaic/internal/providers/clash"
	"mosaic/internal/providers/sports"
	"mosaic/internal/providers/spotify"
	"mosaic/internal/providers/stocks"
	"mosaic/internal/providers/strava"
	"mosaic/pkg/logger"
)

// fakeCompleter scripts one planner response, one agent response, and a
// render stream.
type fakeCompleter struct {
	calls int
}

func (f *fakeCompleter) Chat(_ context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
	f.calls++
	if len(req.Tools) == 0 {
		return &ai.ChatResponse{Choices: []ai.Choice{{Message: ai.Message{
			Role:    ai.RoleAssistant,
			Content: `{"intent": "music overview", "approach": "grid", "sources": ["music"]}`,
		}}}}, nil
	}
	return &ai.ChatResponse{Choices: []ai.Choice{{
		Message: ai.Message{
			Role: ai.RoleAssistant,
			ToolCalls: []ai.ToolCall{{
				ID: "call_1", Type: "function",
				Function: ai.FunctionCall{Name: "spotify_fetch_user_data", Arguments: "{}"},
			}},
		},
		FinishReason: ai.FinishReasonToolCalls,
	}}}, nil
}

func (f *fakeCompleter) ChatStream(_ context.Context, _ ai.ChatRequest) (<-chan ai.ChatStreamChunk, <-chan error) {
	chunks := make(chan ai.ChatStreamChunk, 3)
	errCh := make(chan error, 1)
	chunks <- ai.ChatStreamChunk{Content: "<div>dash</div>"}
	chunks <- ai.ChatStreamChunk{Done: true}
	close(chunks)
	errCh <- nil
	close(errCh)
	return chunks, errCh
}

type fakeMusicProvider struct{}

func (fakeMusicProvider) Authenticated() bool { return true }

func (fakeMusicProvider) Operations() []catalog.Operation {
	return []catalog.Operation{{
		Name:        "fetch_user_data",
		Description: "Get user's listening stats",
		Handler: func(context.Context, map[string]interface{}) (interface{}, error) {
			return map[string]interface{}{"top_songs": []interface{}{"Midnight City"}}, nil
		},
	}}
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	cat := catalog.Build(map[string]catalog.Provider{"spotify": fakeMusicProvider{}})
	pipe := pipeline.New(cat, &fakeCompleter{}, config.AIConfig{
		PlannerModel: "anthropic/test",
		AgentModel:   "gpt-test",
		RenderModel:  "anthropic/test",
	}, metrics.New())

	providers := Providers{
		Spotify: spotify.New(config.SpotifyConfig{}),
		Stocks:  stocks.New(config.StocksConfig{}),
		Sports:  sports.New(config.SportsConfig{}),
		Strava:  strava.New(config.StravaConfig{}),
		Clash:   clash.New(config.ClashConfig{}),
	}

	log := logger.Get()
	healthHandler := health.New(log, map[string]health.Authenticator{
		"spotify": providers.Spotify,
		"clash":   providers.Clash,
	}, "mosaic", "test")

	srv := NewServer(config.ServerConfig{Addr: ":0", CORSOrigins: []string{"*"}},
		pipe, providers, healthHandler, metrics.New(), log)

	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestGenerateStreamsOrderedSSE(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Post(ts.URL+"/api/generate", "application/json",
		strings.NewReader(`{"query": "show my music"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	// Frames arrive in pipeline order and end with exactly one terminal event.
	dataIdx := strings.Index(text, "event: data\n")
	uiIdx := strings.Index(text, "event: ui\n")
	doneIdx := strings.Index(text, "event: done\n")
	require.NotEqual(t, -1, dataIdx)
	require.NotEqual(t, -1, uiIdx)
	require.NotEqual(t, -1, doneIdx)
	assert.Less(t, dataIdx, uiIdx)
	assert.Less(t, uiIdx, doneIdx)

	assert.Contains(t, text, "event: tool_call\n")
	assert.Contains(t, text, "event: tool_result\n")
	assert.Contains(t, text, `"top_songs":["Midnight City"]`)
	assert.Equal(t, 1, strings.Count(text, "event: done\n"))
	assert.NotContains(t, text, "event: error\n")
}

func TestGenerateRequiresQuery(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Post(ts.URL+"/api/generate", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQueryReturnsJSON(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Post(ts.URL+"/api/query", "application/json",
		strings.NewReader(`{"prompt": "my music"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"spotify_fetch_user_data"`)
	assert.Contains(t, string(body), `"functions_called"`)
}

func TestHealthAndReadiness(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)

	resp, err = http.Get(ts.URL + "/ready")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	// No credentials configured in the test server.
	assert.Contains(t, string(body), `"degraded"`)
}

func TestCORSPreflight(t *testing.T) {
	ts := testServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/generate", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSpotifyStatusUnauthenticated(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Get(ts.URL + "/api/spotify/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"authenticated":false`)
}

func TestClashPlayerRequiresAPIKey(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Get(ts.URL + "/api/clash/player/%23ABC123")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
