package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"mosaic/pkg/errors"
)

type Config struct {
	App           AppConfig
	Server        ServerConfig
	AI            AIConfig
	Spotify       SpotifyConfig
	Stocks        StocksConfig
	Sports        SportsConfig
	Strava        StravaConfig
	Clash         ClashConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"mosaic"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
}

type ServerConfig struct {
	Addr        string   `envconfig:"SERVER_ADDR" default:":8000"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

type AIConfig struct {
	OpenAIKey string `envconfig:"OPENAI_API_KEY"`
	ClaudeKey string `envconfig:"CLAUDE_API_KEY"`

	// Model assignments per pipeline stage
	PlannerModel string `envconfig:"PLANNER_MODEL" default:"anthropic/claude-sonnet-4-5-20250929"`
	AgentModel   string `envconfig:"AGENT_MODEL" default:"gpt-5-mini"`
	RenderModel  string `envconfig:"RENDER_MODEL" default:"anthropic/claude-sonnet-4-5-20250929"`

	PlannerMaxTokens int `envconfig:"PLANNER_MAX_TOKENS" default:"300"`
	RenderMaxTokens  int `envconfig:"RENDER_MAX_TOKENS" default:"4000"`

	// Requests per minute against the completion API, shared per provider
	RequestsPerMinute int `envconfig:"AI_REQUESTS_PER_MINUTE" default:"300"`
}

type SpotifyConfig struct {
	ClientID     string `envconfig:"SPOTIFY_CLIENT_ID"`
	ClientSecret string `envconfig:"SPOTIFY_CLIENT_SECRET"`
	RedirectURI  string `envconfig:"SPOTIFY_REDIRECT_URI" default:"http://localhost:8000/api/spotify/callback"`
}

type StocksConfig struct {
	AlphaVantageKey string `envconfig:"ALPHA_VANTAGE_API_KEY"`
}

type SportsConfig struct {
	APIKey string `envconfig:"SPORTS_API_KEY"`
}

type StravaConfig struct {
	ClientID     string `envconfig:"STRAVA_CLIENT_ID"`
	ClientSecret string `envconfig:"STRAVA_CLIENT_SECRET"`
	RefreshToken string `envconfig:"STRAVA_REFRESH_TOKEN"`
}

type ClashConfig struct {
	APIKey string `envconfig:"CLASHROYALE_API_KEY"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from the environment, honoring a .env file if present
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "process environment config")
	}

	return &cfg, nil
}
