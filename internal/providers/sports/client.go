// Package sports fetches team data from TheSportsDB API.
package sports

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"mosaic/internal/adapters/config"
	"mosaic/internal/catalog"
	"mosaic/pkg/errors"
)

const (
	defaultBaseURL = "https://www.thesportsdb.com/api/v1/json"
	defaultTimeout = 10 * time.Second
)

// Client is the TheSportsDB provider. The API key is a path segment, not a
// header.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func New(cfg config.SportsConfig) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

func NewWithBaseURL(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

func (c *Client) Authenticated() bool {
	return c.apiKey != ""
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, target interface{}) error {
	reqURL := c.baseURL + "/" + c.apiKey + "/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrProviderUnavailable, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(errors.ErrProviderUnavailable, "sportsdb http %d: %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, target)
}

type team struct {
	ID      string `json:"idTeam"`
	Name    string `json:"strTeam"`
	League  string `json:"strLeague"`
	Stadium string `json:"strStadium"`
	Badge   string `json:"strBadge"`
}

type event struct {
	Event     string `json:"strEvent"`
	Date      string `json:"dateEvent"`
	HomeTeam  string `json:"strHomeTeam"`
	AwayTeam  string `json:"strAwayTeam"`
	HomeScore string `json:"intHomeScore"`
	AwayScore string `json:"intAwayScore"`
}

// SearchTeam finds a team by name. Not cataloged as a tool; serves the REST
// search endpoint.
func (c *Client) SearchTeam(ctx context.Context, name string) (map[string]interface{}, error) {
	if name == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "team name is required")
	}

	var res struct {
		Teams []team `json:"teams"`
	}
	if err := c.get(ctx, "searchteams.php", url.Values{"t": {name}}, &res); err != nil {
		return nil, err
	}
	if len(res.Teams) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "team %q", name)
	}
	return teamMap(res.Teams[0]), nil
}

// GetTeamStats fetches team details plus recent games.
func (c *Client) GetTeamStats(ctx context.Context, teamID string) (map[string]interface{}, error) {
	if teamID == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "team id is required")
	}

	var res struct {
		Teams []team `json:"teams"`
	}
	if err := c.get(ctx, "lookupteam.php", url.Values{"id": {teamID}}, &res); err != nil {
		return nil, err
	}
	if len(res.Teams) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "team id %q", teamID)
	}

	stats := teamMap(res.Teams[0])
	if games, err := c.recentGames(ctx, teamID); err == nil {
		stats["recent_games"] = games
	}
	return stats, nil
}

// FetchUserSportsSummary aggregates recent games for several teams by name.
// Teams that cannot be resolved are skipped.
func (c *Client) FetchUserSportsSummary(ctx context.Context, teamNames []string) (map[string]interface{}, error) {
	if len(teamNames) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "at least one team name is required")
	}

	teams := make([]interface{}, 0, len(teamNames))
	for _, name := range teamNames {
		info, err := c.SearchTeam(ctx, name)
		if err != nil {
			continue
		}
		if id, ok := info["id"].(string); ok {
			if games, err := c.recentGames(ctx, id); err == nil {
				info["recent_games"] = games
			}
		}
		teams = append(teams, info)
	}
	return map[string]interface{}{"teams": teams}, nil
}

func (c *Client) recentGames(ctx context.Context, teamID string) ([]interface{}, error) {
	var res struct {
		Results []event `json:"results"`
	}
	if err := c.get(ctx, "eventslast.php", url.Values{"id": {teamID}}, &res); err != nil {
		return nil, err
	}

	games := make([]interface{}, 0, len(res.Results))
	for _, e := range res.Results {
		games = append(games, map[string]interface{}{
			"event":      e.Event,
			"date":       e.Date,
			"home_team":  e.HomeTeam,
			"away_team":  e.AwayTeam,
			"home_score": e.HomeScore,
			"away_score": e.AwayScore,
		})
	}
	return games, nil
}

func teamMap(t team) map[string]interface{} {
	return map[string]interface{}{
		"id":      t.ID,
		"name":    t.Name,
		"league":  t.League,
		"stadium": t.Stadium,
		"badge":   t.Badge,
	}
}

func (c *Client) Operations() []catalog.Operation {
	return []catalog.Operation{
		{
			Name:        "get_team_stats",
			Description: "Get detailed stats for a specific sports team",
			Params: []catalog.Param{{
				Name:        "team_id",
				Type:        catalog.TypeString,
				Description: "Team ID or abbreviation (e.g., 'LAL' for Lakers, 'GSW' for Warriors)",
				Required:    true,
			}},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				id, _ := args["team_id"].(string)
				return c.GetTeamStats(ctx, id)
			},
		},
		{
			Name:        "fetch_user_sports_summary",
			Description: "Get summary of favorite sports teams including recent games and standings",
			Params: []catalog.Param{{
				Name:        "team_names",
				Type:        catalog.TypeStringArray,
				Description: "List of team names to get stats for (e.g., ['Lakers', 'Warriors', 'Celtics'])",
				Required:    true,
			}},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return c.FetchUserSportsSummary(ctx, stringSlice(args["team_names"]))
			},
		},
	}
}

func stringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
