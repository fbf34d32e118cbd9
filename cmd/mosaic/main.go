package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mosaic/internal/adapters/ai"
	"mosaic/internal/adapters/config"
	"mosaic/internal/adapters/errors/noop"
	"mosaic/internal/adapters/errors/sentry"
	"mosaic/internal/api"
	"mosaic/internal/api/health"
	"mosaic/internal/catalog"
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

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	providers := api.Providers{
		Spotify: spotify.New(cfg.Spotify),
		Stocks:  stocks.New(cfg.Stocks),
		Sports:  sports.New(cfg.Sports),
		Strava:  strava.New(cfg.Strava),
		Clash:   clash.New(cfg.Clash),
	}

	// Build the tool catalog once; it is immutable for the process lifetime.
	cat := catalog.Build(map[string]catalog.Provider{
		"spotify": providers.Spotify,
		"stocks":  providers.Stocks,
		"sports":  providers.Sports,
		"strava":  providers.Strava,
		"clash":   providers.Clash,
	})
	log.Infof("Tool catalog built with %d operations", cat.Len())

	m := metrics.New()
	router := ai.NewRouter(cfg.AI)
	pipe := pipeline.New(cat, router, cfg.AI, m)

	healthHandler := health.New(log, map[string]health.Authenticator{
		"spotify": providers.Spotify,
		"stocks":  providers.Stocks,
		"sports":  providers.Sports,
		"strava":  providers.Strava,
		"clash":   providers.Clash,
	}, cfg.App.Name, cfg.App.Version)

	server := api.NewServer(cfg.Server, pipe, providers, healthHandler, m, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	waitForShutdown(server, errorTracker, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// waitForShutdown blocks until SIGINT/SIGTERM, then drains the server and
// flushes the error tracker.
func waitForShutdown(server *api.Server, errorTracker errors.Tracker, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Warnf("Server shutdown: %v", err)
	}

	if errorTracker != nil {
		if err := errorTracker.Flush(ctx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
