package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"mosaic/internal/pipeline"
	"mosaic/pkg/errors"
	"mosaic/pkg/logger"
)

type handler struct {
	pipe      *pipeline.Pipeline
	providers Providers
	log       *logger.Logger
}

type generateRequest struct {
	Query string `json:"query"`
}

type queryRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

type refineRequest struct {
	Query       string             `json:"query"`
	CurrentHTML string             `json:"currentHtml"`
	DataContext pipeline.Aggregate `json:"dataContext"`
}

type interactRequest struct {
	ClickPrompt   string                 `json:"clickPrompt"`
	ClickedData   map[string]interface{} `json:"clickedData"`
	CurrentHTML   string                 `json:"currentHtml"`
	DataContext   pipeline.Aggregate     `json:"dataContext"`
	ComponentType string                 `json:"componentType"`
}

func (h *handler) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	h.streamSSE(w, r, h.pipe.Generate(r.Context(), req.Query))
}

func (h *handler) generateLegacy(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	h.streamSSE(w, r, h.pipe.GenerateLegacy(r.Context(), req.Query))
}

func (h *handler) refine(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.streamSSE(w, r, h.pipe.Refine(r.Context(), pipeline.RefineRequest{
		Query:          req.Query,
		CurrentContent: req.CurrentHTML,
		DataContext:    req.DataContext,
	}))
}

func (h *handler) interact(w http.ResponseWriter, r *http.Request) {
	var req interactRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.streamSSE(w, r, h.pipe.Interact(r.Context(), pipeline.InteractRequest{
		ClickPrompt:    req.ClickPrompt,
		ClickedData:    req.ClickedData,
		CurrentContent: req.CurrentHTML,
		DataContext:    req.DataContext,
		ComponentType:  req.ComponentType,
	}))
}

func (h *handler) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	result, err := h.pipe.Query(r.Context(), req.Prompt, req.Model)
	if err != nil {
		h.log.Errorf("query failed: %v", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// streamSSE forwards pipeline events as SSE frames, flushing each one.
func (h *handler) streamSSE(w http.ResponseWriter, r *http.Request, events <-chan pipeline.Event) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)
	for ev := range events {
		if _, err := w.Write(ev.Frame()); err != nil {
			// Client went away; the pipeline stops via the request context.
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

// Provider passthrough endpoints.

func (h *handler) spotifyAuth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"auth_url": h.providers.Spotify.AuthorizationURL()})
}

func (h *handler) spotifyCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code parameter")
		return
	}
	if err := h.providers.Spotify.ExchangeCode(r.Context(), code); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	data, err := h.providers.Spotify.FetchUserData(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"authenticated": true, "data": data})
}

func (h *handler) spotifyStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": h.providers.Spotify.Authenticated()})
}

func (h *handler) spotifyData(w http.ResponseWriter, r *http.Request) {
	if !h.providers.Spotify.Authenticated() {
		writeError(w, http.StatusUnauthorized, "not authenticated, visit /api/spotify/auth first")
		return
	}
	data, err := h.providers.Spotify.FetchUserData(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *handler) stocksPortfolio(w http.ResponseWriter, r *http.Request) {
	symbols := splitParam(r.URL.Query().Get("symbols"))
	data, err := h.providers.Stocks.FetchPortfolioData(r.Context(), symbols)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *handler) stocksMarket(w http.ResponseWriter, r *http.Request) {
	data, err := h.providers.Stocks.FetchMarketTrends(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *handler) stocksInfo(w http.ResponseWriter, r *http.Request) {
	data, err := h.providers.Stocks.FetchStockInfo(r.Context(), r.PathValue("symbol"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *handler) sportsSearch(w http.ResponseWriter, r *http.Request) {
	data, err := h.providers.Sports.SearchTeam(r.Context(), r.URL.Query().Get("team"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *handler) sportsTeamStats(w http.ResponseWriter, r *http.Request) {
	data, err := h.providers.Sports.GetTeamStats(r.Context(), r.PathValue("team_id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *handler) sportsSummary(w http.ResponseWriter, r *http.Request) {
	teams := splitParam(r.URL.Query().Get("teams"))
	data, err := h.providers.Sports.FetchUserSportsSummary(r.Context(), teams)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *handler) stravaSummary(w http.ResponseWriter, r *http.Request) {
	data, err := h.providers.Strava.FetchUserSummary(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *handler) stravaActivities(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	data, err := h.providers.Strava.GetActivities(r.Context(), limit)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *handler) clashPlayer(w http.ResponseWriter, r *http.Request) {
	if !h.providers.Clash.Authenticated() {
		writeError(w, http.StatusUnauthorized, "API key not configured")
		return
	}
	data, err := h.providers.Clash.GetPlayer(r.Context(), r.PathValue("tag"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *handler) clashSummary(w http.ResponseWriter, r *http.Request) {
	if !h.providers.Clash.Authenticated() {
		writeError(w, http.StatusUnauthorized, "API key not configured")
		return
	}
	data, err := h.providers.Clash.FetchUserSummary(r.Context(), r.PathValue("tag"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// Helpers.

func decodeBody(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps domain sentinels onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrUnauthorized), errors.Is(err, errors.ErrProviderNotConfigured):
		return http.StatusUnauthorized
	case errors.Is(err, errors.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, errors.ErrProviderUnavailable), errors.Is(err, errors.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// splitParam splits a comma-separated query parameter, dropping empties.
func splitParam(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
