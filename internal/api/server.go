// Package api exposes the pipeline and the data providers over HTTP. The
// generative endpoints stream server-sent events; the provider passthrough
// endpoints return plain JSON.
package api

import (
	"context"
	"net/http"
	"time"

	"mosaic/internal/adapters/config"
	"mosaic/internal/api/health"
	"mosaic/internal/metrics"
	"mosaic/internal/pipeline"
	"mosaic/internal/providers/clash"
	"mosaic/internal/providers/sports"
	"mosaic/internal/providers/spotify"
	"mosaic/internal/providers/stocks"
	"mosaic/internal/providers/strava"
	"mosaic/pkg/errors"
	"mosaic/pkg/logger"
)

// Providers bundles the data-provider clients the REST surface exposes.
type Providers struct {
	Spotify *spotify.Client
	Stocks  *stocks.Client
	Sports  *sports.Client
	Strava  *strava.Client
	Clash   *clash.Client
}

// Server wraps the HTTP server with lifecycle management.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer configures all routes and returns an unstarted server.
func NewServer(
	cfg config.ServerConfig,
	pipe *pipeline.Pipeline,
	providers Providers,
	healthHandler *health.Handler,
	m *metrics.Metrics,
	log *logger.Logger,
) *Server {
	h := &handler{pipe: pipe, providers: providers, log: log.With("component", "api")}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/generate", h.generate)
	mux.HandleFunc("POST /api/generate-legacy", h.generateLegacy)
	mux.HandleFunc("POST /api/refine", h.refine)
	mux.HandleFunc("POST /api/interact", h.interact)
	mux.HandleFunc("POST /api/query", h.query)

	mux.HandleFunc("GET /api/spotify/auth", h.spotifyAuth)
	mux.HandleFunc("GET /api/spotify/callback", h.spotifyCallback)
	mux.HandleFunc("GET /api/spotify/status", h.spotifyStatus)
	mux.HandleFunc("GET /api/spotify/data", h.spotifyData)
	mux.HandleFunc("POST /api/spotify/refresh", h.spotifyData)

	mux.HandleFunc("GET /api/stocks/portfolio", h.stocksPortfolio)
	mux.HandleFunc("GET /api/stocks/market", h.stocksMarket)
	mux.HandleFunc("GET /api/stocks/{symbol}", h.stocksInfo)

	mux.HandleFunc("GET /api/sports/search", h.sportsSearch)
	mux.HandleFunc("GET /api/sports/team/{team_id}", h.sportsTeamStats)
	mux.HandleFunc("GET /api/sports/summary", h.sportsSummary)

	mux.HandleFunc("GET /api/strava/summary", h.stravaSummary)
	mux.HandleFunc("GET /api/strava/activities", h.stravaActivities)

	mux.HandleFunc("GET /api/clash/player/{tag}", h.clashPlayer)
	mux.HandleFunc("GET /api/clash/summary/{tag}", h.clashSummary)

	mux.HandleFunc("GET /health", healthHandler.HandleHealth)
	mux.HandleFunc("GET /live", healthHandler.HandleLiveness)
	mux.HandleFunc("GET /ready", healthHandler.HandleReadiness)
	mux.Handle("GET /metrics", m.Handler())

	httpServer := &http.Server{
		Addr:        cfg.Addr,
		Handler:     corsMiddleware(cfg.CORSOrigins, mux),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: SSE responses stay open for the stream duration.
	}

	return &Server{httpServer: httpServer, log: log}
}

// Start begins listening and blocks until the server stops.
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for active connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}
	return nil
}

// corsMiddleware applies the configured allowed origins and answers
// preflight requests.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
